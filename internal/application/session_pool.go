package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Handle is a browsing session borrowed by one worker. Release must be
// called exactly once on every exit path.
type Handle interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Release() error
}

type PoolStats struct {
	Live     int
	Idle     int
	InUse    int
	Acquired int
	Released int
}

// SessionPool is a non-blocking, demand-growing set of sessions scoped to one
// batch. Acquire never waits: when no idle session exists a new one is
// created, so the caller bounds concurrency.
type SessionPool struct {
	backend ports.SessionBackend
	metrics ports.ResolutionMetrics
	logger  zerolog.Logger

	mu       sync.Mutex
	idle     []*pooledSession
	live     map[string]*pooledSession
	inUse    int
	acquired int
	released int
}

func NewSessionPool(backend ports.SessionBackend, metrics ports.ResolutionMetrics, logger zerolog.Logger) *SessionPool {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &SessionPool{
		backend: backend,
		metrics: metrics,
		logger:  logger.With().Str("backend", backend.Name()).Logger(),
		live:    make(map[string]*pooledSession),
	}
}

// Initialize drops any existing sessions and pre-creates size new ones.
// A failed creation is logged and skipped; an error is returned only when no
// session could be created at all.
func (p *SessionPool) Initialize(ctx context.Context, size int) error {
	if err := p.Shutdown(); err != nil {
		p.logger.Warn().Err(err).Msg("close sessions before initialize")
	}
	if size <= 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		created []*pooledSession
		errs    []error
	)

	var eg errgroup.Group
	for i := 0; i < size; i++ {
		eg.Go(func() error {
			handle, err := p.create(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			created = append(created, handle)
			return nil
		})
	}
	_ = eg.Wait()

	p.mu.Lock()
	for _, handle := range created {
		p.live[handle.id] = handle
		p.idle = append(p.idle, handle)
	}
	live := len(p.live)
	p.mu.Unlock()
	p.metrics.PoolSize(live)

	p.logger.Debug().Int("requested", size).Int("created", len(created)).Msg("session pool initialized")

	if len(created) == 0 {
		return &domain.SessionCreationError{Backend: p.backend.Name(), Err: errors.Join(errs...)}
	}
	return nil
}

// Acquire hands out an idle session, or creates one when none is idle.
func (p *SessionPool) Acquire(ctx context.Context) (Handle, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		entry := p.idle[n-1]
		p.idle = p.idle[:n-1]
		lease := p.checkout(entry)
		p.mu.Unlock()
		p.logger.Trace().Str("session_id", entry.id).Msg("session acquired")
		return lease, nil
	}
	p.mu.Unlock()

	entry, err := p.create(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.live[entry.id] = entry
	lease := p.checkout(entry)
	live := len(p.live)
	p.mu.Unlock()
	p.metrics.PoolSize(live)

	p.logger.Trace().Str("session_id", entry.id).Msg("session acquired after growing pool")
	return lease, nil
}

// Shutdown closes every session the pool knows about, idle or not. Close
// failures are logged and do not stop the remaining closes.
func (p *SessionPool) Shutdown() error {
	p.mu.Lock()
	handles := make([]*pooledSession, 0, len(p.live))
	for _, handle := range p.live {
		handles = append(handles, handle)
	}
	inUse := p.inUse
	p.live = make(map[string]*pooledSession)
	p.idle = nil
	p.inUse = 0
	p.mu.Unlock()

	if len(handles) == 0 {
		return nil
	}
	if inUse > 0 {
		p.logger.Warn().Int("in_use", inUse).Msg("shutting down pool with sessions still in use")
	}

	var errs []error
	for _, handle := range handles {
		if err := handle.session.Close(); err != nil {
			p.logger.Warn().Err(err).Str("session_id", handle.id).Msg("close session")
			errs = append(errs, fmt.Errorf("close session %s: %w", handle.id, err))
		}
	}
	p.metrics.PoolSize(0)
	p.logger.Debug().Int("closed", len(handles)).Msg("session pool shut down")

	return errors.Join(errs...)
}

func (p *SessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Live:     len(p.live),
		Idle:     len(p.idle),
		InUse:    p.inUse,
		Acquired: p.acquired,
		Released: p.released,
	}
}

func (p *SessionPool) create(ctx context.Context) (*pooledSession, error) {
	session, err := p.backend.NewSession(ctx)
	if err != nil {
		p.metrics.SessionCreateFailed(p.backend.Name())
		p.logger.Warn().Err(err).Msg("create session")
		return nil, sessionCreationError(p.backend.Name(), err)
	}
	p.metrics.SessionCreated(p.backend.Name())

	entry := &pooledSession{id: uuid.NewString(), session: session}
	p.logger.Debug().Str("session_id", entry.id).Msg("session created")
	return entry, nil
}

// checkout must be called with p.mu held. Every checkout yields a new lease,
// so a stale lease from an earlier borrower can never return the session.
func (p *SessionPool) checkout(entry *pooledSession) *pooledHandle {
	p.inUse++
	p.acquired++
	return &pooledHandle{pooledSession: entry, pool: p}
}

func (p *SessionPool) release(handle *pooledHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle.released {
		return
	}
	handle.released = true
	p.released++
	if p.live[handle.id] != handle.pooledSession {
		// The pool was shut down while the handle was out.
		return
	}
	p.inUse--
	p.idle = append(p.idle, handle.pooledSession)
	p.logger.Trace().Str("session_id", handle.id).Msg("session released")
}

func sessionCreationError(backend string, err error) error {
	var creationErr *domain.SessionCreationError
	if errors.As(err, &creationErr) {
		return err
	}
	return &domain.SessionCreationError{Backend: backend, Err: err}
}

// pooledSession is a session owned by the pool.
type pooledSession struct {
	id      string
	session ports.Session
}

// pooledHandle is one borrow of a pooled session. It returns the session to
// the owning pool on its first release only.
type pooledHandle struct {
	*pooledSession
	pool *SessionPool
	// released is guarded by pool.mu.
	released bool
}

var _ Handle = (*pooledHandle)(nil)

func (h *pooledHandle) ID() string {
	return h.id
}

func (h *pooledHandle) Navigate(ctx context.Context, url string) error {
	return h.session.Navigate(ctx, url)
}

func (h *pooledHandle) CurrentURL(ctx context.Context) (string, error) {
	return h.session.CurrentURL(ctx)
}

func (h *pooledHandle) Release() error {
	h.pool.release(h)
	return nil
}

// bareHandle owns its session outright and closes it on release.
type bareHandle struct {
	id      string
	session ports.Session
	once    sync.Once
}

var _ Handle = (*bareHandle)(nil)

// NewBareHandle creates a session outside any pool.
func NewBareHandle(ctx context.Context, backend ports.SessionBackend) (Handle, error) {
	session, err := backend.NewSession(ctx)
	if err != nil {
		return nil, sessionCreationError(backend.Name(), err)
	}

	return &bareHandle{id: uuid.NewString(), session: session}, nil
}

func (h *bareHandle) ID() string {
	return h.id
}

func (h *bareHandle) Navigate(ctx context.Context, url string) error {
	return h.session.Navigate(ctx, url)
}

func (h *bareHandle) CurrentURL(ctx context.Context) (string, error) {
	return h.session.CurrentURL(ctx)
}

func (h *bareHandle) Release() error {
	var err error
	h.once.Do(func() {
		if closeErr := h.session.Close(); closeErr != nil {
			err = fmt.Errorf("close session %s: %w", h.id, closeErr)
		}
	})
	return err
}
