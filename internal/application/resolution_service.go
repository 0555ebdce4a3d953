package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const resolvingStage = "Resolving"

// ResolutionService resolves place references through browsing sessions, in
// sequential batches with bounded parallelism inside each batch.
type ResolutionService struct {
	backend ports.SessionBackend
	metrics ports.ResolutionMetrics
	clock   ports.Clock
	logger  zerolog.Logger
	// batchDone, when set, receives each drained pool's stats before shutdown.
	batchDone func(PoolStats)
}

func NewResolutionService(backend ports.SessionBackend, metrics ports.ResolutionMetrics, clock ports.Clock, logger zerolog.Logger) *ResolutionService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &ResolutionService{
		backend: backend,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// Process resolves every reference. Per-item failures land in the outcome;
// the returned error is reserved for invalid settings and for cancellation of
// ctx by the caller. Stop-on-error ends the run early with Outcome.Stopped set.
func (s *ResolutionService) Process(ctx context.Context, refs []domain.PlaceReference, settings ResolveSettings, progress ports.ProgressReporter) (domain.Outcome, error) {
	if err := settings.Validate(); err != nil {
		return domain.Outcome{}, err
	}
	if len(refs) == 0 {
		return domain.Outcome{}, nil
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &resolutionRun{
		service:  s,
		settings: settings,
		progress: progress,
		cancel:   cancel,
		started:  s.clock.Now(),
		total:    len(refs),
		estimate: EstimateRunTime(len(refs), settings),
	}
	progress.Report(run.snapshot())

	batches := chunkReferences(refs, settings.BatchSize)
	for i, batch := range batches {
		if runCtx.Err() != nil {
			break
		}
		run.processBatch(runCtx, i+1, batch)
	}

	outcome := run.result()
	if !outcome.Stopped && ctx.Err() != nil {
		return outcome, fmt.Errorf("resolve place locations: %w", ctx.Err())
	}

	s.logger.Info().
		Int("placemarks", len(outcome.Placemarks)).
		Int("errors", len(outcome.Errors)).
		Bool("stopped", outcome.Stopped).
		Dur("duration", s.clock.Now().Sub(run.started)).
		Msg("resolution finished")

	return outcome, nil
}

type resolutionRun struct {
	service  *ResolutionService
	settings ResolveSettings
	progress ports.ProgressReporter
	cancel   context.CancelFunc
	started  time.Time
	total    int
	estimate time.Duration
	stopped  atomic.Bool

	mu      sync.Mutex
	done    int
	outcome domain.Outcome
}

func (r *resolutionRun) processBatch(ctx context.Context, number int, batch []domain.PlaceReference) {
	s := r.service
	logger := s.logger.With().Int("batch", number).Logger()
	started := s.clock.Now()
	logger.Info().Int("items", len(batch)).Msg("batch started")

	pool := NewSessionPool(s.backend, s.metrics, logger)
	if warm := min(r.settings.Parallelism, countNeedingSession(batch)); warm > 0 {
		if err := pool.Initialize(ctx, warm); err != nil {
			logger.Warn().Err(err).Msg("pre-create sessions; growing on demand")
		}
	}

	var eg errgroup.Group
	eg.SetLimit(r.settings.Parallelism)
	for _, ref := range batch {
		ref := ref
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				s.metrics.Item(ports.ItemSkipped, 0)
				return nil
			}
			r.processItem(ctx, pool, ref)
			return nil
		})
	}
	_ = eg.Wait()

	stats := pool.Stats()
	if s.batchDone != nil {
		s.batchDone(stats)
	}
	if err := pool.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("shut down session pool")
	}

	elapsed := s.clock.Now().Sub(started)
	s.metrics.Batch(elapsed)
	logger.Info().
		Int("acquired", stats.Acquired).
		Int("released", stats.Released).
		Dur("duration", elapsed).
		Msg("batch finished")
}

func (r *resolutionRun) processItem(ctx context.Context, pool *SessionPool, ref domain.PlaceReference) {
	s := r.service
	started := s.clock.Now()
	logger := s.logger.With().Int("row", ref.RowNumber).Logger()

	resolved := ref
	if ref.NeedsSession() {
		url, err := r.resolveWithRetry(ctx, pool, ref, logger)
		if err != nil {
			if ctx.Err() != nil {
				s.metrics.Item(ports.ItemSkipped, s.clock.Now().Sub(started))
				return
			}
			logger.Error().Err(err).Str("url", ref.URL).Msg("resolve place")
			r.fail(ref, err.Error(), started)
			return
		}
		resolved = ref.WithURL(url)
	} else {
		logger.Debug().Msg("no session needed")
	}

	placemark, err := domain.ResolvePlacemark(resolved, r.settings.IncludeComments)
	if err != nil {
		logger.Debug().Err(err).Msg("parse resolved url")
		r.fail(resolved, err.Error(), started)
		return
	}
	r.succeed(placemark, started)
}

// resolveWithRetry runs attempts until one succeeds or the policy gives up.
func (r *resolutionRun) resolveWithRetry(ctx context.Context, pool *SessionPool, ref domain.PlaceReference, logger zerolog.Logger) (string, error) {
	s := r.service
	policy := RetryPolicy{MaxAttempts: r.settings.MaxAttempts}

	for attempt := 1; ; attempt++ {
		url, err := r.attempt(ctx, pool, ref, logger)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		switch policy.Next(attempt, err) {
		case AttemptSucceeded:
			s.metrics.Attempt(ports.AttemptSuccess)
			return url, nil
		case AttemptRetryable:
			s.metrics.Attempt(ports.AttemptRetry)
			logger.Warn().Err(err).Int("attempt", attempt).Msg("attempt failed, retrying")
		default:
			s.metrics.Attempt(ports.AttemptExhausted)
			return "", fmt.Errorf("%w after %d attempt(s): %w", domain.ErrRetryExhausted, attempt, err)
		}
	}
}

// attempt borrows a session, navigates and polls. The session goes back to
// the pool on every path.
func (r *resolutionRun) attempt(ctx context.Context, pool *SessionPool, ref domain.PlaceReference, logger zerolog.Logger) (string, error) {
	handle, err := pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			logger.Warn().Err(releaseErr).Str("session_id", handle.ID()).Msg("release session")
		}
	}()

	logger = logger.With().Str("session_id", handle.ID()).Logger()
	if err := navigate(ctx, handle, ref.URL, logger); err != nil {
		return "", err
	}

	return r.poll(ctx, handle, logger)
}

// navigate retries a renderer timeout once before giving up on the attempt.
func navigate(ctx context.Context, handle Handle, url string, logger zerolog.Logger) error {
	err := handle.Navigate(ctx, url)
	if errors.Is(err, domain.ErrRendererTimeout) && ctx.Err() == nil {
		logger.Warn().Err(err).Str("url", url).Msg("renderer timeout, navigating again")
		err = handle.Navigate(ctx, url)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrNavigation, url, err)
	}
	return nil
}

// poll reads the current URL until it carries the coordinate marker or the
// item timeout passes. On timeout the last URL seen is returned as is.
func (r *resolutionRun) poll(ctx context.Context, handle Handle, logger zerolog.Logger) (string, error) {
	s := r.service
	deadline := s.clock.Now().Add(r.settings.ItemTimeout)

	for {
		current, err := handle.CurrentURL(ctx)
		if err != nil {
			return "", fmt.Errorf("read current url: %w", err)
		}
		if strings.Contains(current, domain.CoordinateMarker) {
			return current, nil
		}

		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			logger.Debug().Str("url", current).Msg("poll timed out without coordinates")
			return current, nil
		}
		logger.Trace().Str("url", current).Dur("remaining", remaining).Msg("waiting for coordinates")

		timer := time.NewTimer(min(r.settings.PollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *resolutionRun) succeed(placemark domain.Placemark, started time.Time) {
	now := r.service.clock.Now()
	r.service.metrics.Item(ports.ItemResolved, now.Sub(started))

	r.mu.Lock()
	r.outcome.Placemarks = append(r.outcome.Placemarks, placemark)
	r.done++
	// Reported under the lock so progress never goes backwards.
	r.progress.Report(r.snapshotLocked(now))
	r.mu.Unlock()
}

func (r *resolutionRun) fail(ref domain.PlaceReference, message string, started time.Time) {
	now := r.service.clock.Now()
	r.service.metrics.Item(ports.ItemFailed, now.Sub(started))

	r.mu.Lock()
	r.outcome.Errors = append(r.outcome.Errors, domain.RowError{
		RowIndex:   ref.RowNumber,
		Row:        rowText(ref),
		Message:    message,
		OccurredAt: now,
	})
	r.done++
	r.progress.Report(r.snapshotLocked(now))
	r.mu.Unlock()

	if r.settings.StopOnError && r.stopped.CompareAndSwap(false, true) {
		r.service.logger.Warn().Int("row", ref.RowNumber).Msg("stopping on first error")
		r.cancel()
	}
}

func (r *resolutionRun) snapshot() domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.service.clock.Now())
}

// snapshotLocked must be called with r.mu held.
func (r *resolutionRun) snapshotLocked(now time.Time) domain.Progress {
	elapsed := now.Sub(r.started)
	remaining := r.estimate - elapsed
	if r.done > 0 {
		remaining = elapsed / time.Duration(r.done) * time.Duration(r.total-r.done)
	}

	return domain.Progress{
		Stage:     resolvingStage,
		Done:      r.done,
		Total:     r.total,
		Elapsed:   elapsed,
		Remaining: remaining,
	}
}

func (r *resolutionRun) result() domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := domain.Outcome{
		Errors:     append([]domain.RowError(nil), r.outcome.Errors...),
		Placemarks: append([]domain.Placemark(nil), r.outcome.Placemarks...),
		Stopped:    r.stopped.Load(),
	}
	outcome.Sort()
	return outcome
}

func chunkReferences(refs []domain.PlaceReference, size int) [][]domain.PlaceReference {
	chunks := make([][]domain.PlaceReference, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		chunks = append(chunks, refs[start:end])
	}
	return chunks
}

func countNeedingSession(refs []domain.PlaceReference) int {
	count := 0
	for _, ref := range refs {
		if ref.NeedsSession() {
			count++
		}
	}
	return count
}

func rowText(ref domain.PlaceReference) string {
	return strings.Join([]string{ref.Title, ref.Note, ref.URL, ref.Comment}, ",")
}
