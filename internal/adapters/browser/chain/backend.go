package chain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bnema/kmlx/internal/ports"
)

// Backend creates sessions from the primary backend and falls back to the
// secondary one when the primary cannot start a session. Once the primary
// has failed, later sessions go straight to the fallback.
type Backend struct {
	primary     ports.SessionBackend
	fallback    ports.SessionBackend
	primaryDown atomic.Bool
}

var _ ports.SessionBackend = (*Backend)(nil)

var (
	errNilPrimaryBackend  = errors.New("primary session backend is nil")
	errNilFallbackBackend = errors.New("fallback session backend is nil")
)

func NewBackend(primary ports.SessionBackend, fallback ports.SessionBackend) *Backend {
	backend, err := NewBackendChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return backend
}

func NewBackendChecked(primary ports.SessionBackend, fallback ports.SessionBackend) (*Backend, error) {
	if primary == nil {
		return nil, errNilPrimaryBackend
	}
	if fallback == nil {
		return nil, errNilFallbackBackend
	}

	return &Backend{primary: primary, fallback: fallback}, nil
}

func (b *Backend) Name() string {
	return b.primary.Name() + "|" + b.fallback.Name()
}

func (b *Backend) NewSession(ctx context.Context) (ports.Session, error) {
	if b.primaryDown.Load() {
		return b.fallback.NewSession(ctx)
	}

	session, err := b.primary.NewSession(ctx)
	if err == nil {
		return session, nil
	}
	if shouldSkipFallback(err) {
		return nil, err
	}

	fallbackSession, fallbackErr := b.fallback.NewSession(ctx)
	if fallbackErr == nil {
		b.primaryDown.Store(true)
		return fallbackSession, nil
	}

	return nil, fmt.Errorf("primary backend %s failed: %w; fallback backend %s failed: %w", b.primary.Name(), err, b.fallback.Name(), fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
