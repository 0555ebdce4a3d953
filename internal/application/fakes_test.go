package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// fakeBackend hands out in-memory sessions. A navigated place URL resolves
// to itself with a coordinate segment unless resolve says otherwise.
type fakeBackend struct {
	name      string
	createErr error
	// failCreates makes the first n session creations fail.
	failCreates int
	navDelay    time.Duration
	resolve     func(url string) string
	navigateErr func(url string, attempt int) error

	mu          sync.Mutex
	created     int
	closed      int
	navigations map[string]int
	active      int
	maxActive   int
	windows     []window
}

type window struct {
	start time.Time
	end   time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{name: "fake", navigations: make(map[string]int)}
}

func (b *fakeBackend) Name() string {
	return b.name
}

func (b *fakeBackend) NewSession(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.createErr != nil {
		return nil, b.createErr
	}
	if b.failCreates > 0 {
		b.failCreates--
		return nil, errors.New("browser did not start")
	}
	b.created++
	return &fakeSession{backend: b}, nil
}

func (b *fakeBackend) stats() (created, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created, b.closed
}

func (b *fakeBackend) navigationCount(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.navigations[url]
}

func (b *fakeBackend) totalNavigations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, count := range b.navigations {
		total += count
	}
	return total
}

type fakeSession struct {
	backend *fakeBackend
	current string
	closed  bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	b := s.backend
	b.mu.Lock()
	b.navigations[url]++
	attempt := b.navigations[url]
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	start := time.Now()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.active--
		b.windows = append(b.windows, window{start: start, end: time.Now()})
		b.mu.Unlock()
	}()

	if b.navDelay > 0 {
		timer := time.NewTimer(b.navDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if b.navigateErr != nil {
		if err := b.navigateErr(url, attempt); err != nil {
			return err
		}
	}

	if b.resolve != nil {
		s.current = b.resolve(url)
	} else {
		s.current = resolvedURL(url)
	}
	return nil
}

func (s *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.current, nil
}

func (s *fakeSession) Close() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.backend.closed++
	}
	return nil
}

type recordingProgress struct {
	mu      sync.Mutex
	reports []domain.Progress
}

func (p *recordingProgress) Report(progress domain.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, progress)
}

func (p *recordingProgress) last() domain.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reports) == 0 {
		return domain.Progress{}
	}
	return p.reports[len(p.reports)-1]
}

type countingMetrics struct {
	ports.NopMetrics

	mu       sync.Mutex
	attempts map[ports.AttemptResult]int
	items    map[ports.ItemStatus]int
	batches  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		attempts: make(map[ports.AttemptResult]int),
		items:    make(map[ports.ItemStatus]int),
	}
}

func (m *countingMetrics) Attempt(result ports.AttemptResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[result]++
}

func (m *countingMetrics) Item(status ports.ItemStatus, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[status]++
}

func (m *countingMetrics) Batch(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func resolvedURL(url string) string {
	if strings.Contains(url, "/data=") {
		return strings.Replace(url, "/data=", "/@1.5,2.5,17z/data=", 1)
	}
	return strings.TrimSuffix(url, "/") + "/@1.5,2.5,17z"
}

func placeRef(row int, slug string) domain.PlaceReference {
	return domain.PlaceReference{
		RowNumber: row,
		URL:       "https://www.google.com/maps/place/" + slug + "/data=!4m2",
		Title:     slug,
		Note:      "note",
	}
}

func searchRef(row int, coords string) domain.PlaceReference {
	return domain.PlaceReference{
		RowNumber: row,
		URL:       "https://www.google.com/maps/search/" + coords,
		Title:     "search",
	}
}

func fastSettings() ResolveSettings {
	settings := DefaultSettings()
	settings.ItemTimeout = 50 * time.Millisecond
	settings.PollInterval = 5 * time.Millisecond
	return settings
}
