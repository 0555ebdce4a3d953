// Package prom records resolution metrics in a dedicated Prometheus registry.
//
// Metrics:
//   - kmlx_sessions_created_total{backend} (Counter): browsing sessions started
//   - kmlx_session_create_failures_total{backend} (Counter): sessions that failed to start
//   - kmlx_pool_sessions (Gauge): live sessions in the current batch pool
//   - kmlx_attempts_total{result} (Counter): resolution attempts by success, retry or exhausted
//   - kmlx_items_total{status} (Counter): items by resolved, failed or skipped
//   - kmlx_item_duration_seconds (Histogram): wall time per item
//   - kmlx_batch_duration_seconds (Histogram): wall time per batch
package prom

import (
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kmlx"

type Recorder struct {
	registry *prometheus.Registry

	sessionsCreated       *prometheus.CounterVec
	sessionCreateFailures *prometheus.CounterVec
	poolSessions          prometheus.Gauge
	attempts              *prometheus.CounterVec
	items                 *prometheus.CounterVec
	itemDuration          prometheus.Histogram
	batchDuration         prometheus.Histogram
}

var _ ports.ResolutionMetrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Browsing sessions started, by backend.",
		}, []string{"backend"}),
		sessionCreateFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_create_failures_total",
			Help:      "Browsing sessions that failed to start, by backend.",
		}, []string{"backend"}),
		poolSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_sessions",
			Help:      "Live sessions in the current batch pool.",
		}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Resolution attempts by result.",
		}, []string{"result"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Resolved references by final status.",
		}, []string{"status"}),
		itemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Wall time spent resolving one reference.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time spent on one batch including pool warm-up and shutdown.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) SessionCreated(backend string) {
	r.sessionsCreated.WithLabelValues(backend).Inc()
}

func (r *Recorder) SessionCreateFailed(backend string) {
	r.sessionCreateFailures.WithLabelValues(backend).Inc()
}

func (r *Recorder) PoolSize(sessions int) {
	r.poolSessions.Set(float64(sessions))
}

func (r *Recorder) Attempt(result ports.AttemptResult) {
	r.attempts.WithLabelValues(string(result)).Inc()
}

func (r *Recorder) Item(status ports.ItemStatus, elapsed time.Duration) {
	r.items.WithLabelValues(string(status)).Inc()
	r.itemDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) Batch(elapsed time.Duration) {
	r.batchDuration.Observe(elapsed.Seconds())
}

// WriteTextfile dumps the registry in the text exposition format, suitable
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
