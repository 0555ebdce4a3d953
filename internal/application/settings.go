package application

import (
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/domain"
)

const (
	DefaultParallelism       = 4
	DefaultBatchSize         = 10
	DefaultItemTimeout       = 10 * time.Second
	DefaultPollInterval      = 3 * time.Second
	DefaultMaxAttempts       = 3
	DefaultNavigationTimeout = 60 * time.Second
)

// ResolveSettings tunes one resolution run.
type ResolveSettings struct {
	Parallelism int
	BatchSize   int
	// ItemTimeout bounds the polling of a single navigated item.
	ItemTimeout     time.Duration
	PollInterval    time.Duration
	MaxAttempts     int
	StopOnError     bool
	IncludeComments bool
}

func DefaultSettings() ResolveSettings {
	return ResolveSettings{
		Parallelism:  DefaultParallelism,
		BatchSize:    DefaultBatchSize,
		ItemTimeout:  DefaultItemTimeout,
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

func (s ResolveSettings) Validate() error {
	switch {
	case s.Parallelism < 1:
		return fmt.Errorf("%w: parallel must be at least 1, got %d", domain.ErrInvalidSettings, s.Parallelism)
	case s.BatchSize < 1:
		return fmt.Errorf("%w: batch must be at least 1, got %d", domain.ErrInvalidSettings, s.BatchSize)
	case s.ItemTimeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", domain.ErrInvalidSettings, s.ItemTimeout)
	case s.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive, got %s", domain.ErrInvalidSettings, s.PollInterval)
	case s.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", domain.ErrInvalidSettings, s.MaxAttempts)
	}
	return nil
}
