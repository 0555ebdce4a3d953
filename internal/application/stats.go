package application

import (
	"sync"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
)

// StatRecorder times named stages. Stages recorded twice accumulate.
type StatRecorder struct {
	clock ports.Clock

	mu    sync.Mutex
	stats []domain.Stat
}

func NewStatRecorder(clock ports.Clock) *StatRecorder {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &StatRecorder{clock: clock}
}

func (r *StatRecorder) Track(name string, fn func() error) error {
	started := r.clock.Now()
	err := fn()
	r.add(name, r.clock.Now().Sub(started))
	return err
}

func (r *StatRecorder) Results() []domain.Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.Stat(nil), r.stats...)
}

func (r *StatRecorder) add(name string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.stats {
		if r.stats[i].Event == name {
			r.stats[i].Total += elapsed
			return
		}
	}
	r.stats = append(r.stats, domain.Stat{Event: name, Total: elapsed})
}
