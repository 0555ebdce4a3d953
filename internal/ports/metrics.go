package ports

import "time"

type AttemptResult string

const (
	AttemptSuccess   AttemptResult = "success"
	AttemptRetry     AttemptResult = "retry"
	AttemptExhausted AttemptResult = "exhausted"
)

type ItemStatus string

const (
	ItemResolved ItemStatus = "resolved"
	ItemFailed   ItemStatus = "failed"
	ItemSkipped  ItemStatus = "skipped"
)

type ResolutionMetrics interface {
	SessionCreated(backend string)
	SessionCreateFailed(backend string)
	PoolSize(sessions int)
	Attempt(result AttemptResult)
	Item(status ItemStatus, elapsed time.Duration)
	Batch(elapsed time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) SessionCreated(string) {}
func (NopMetrics) SessionCreateFailed(string) {}
func (NopMetrics) PoolSize(int) {}
func (NopMetrics) Attempt(AttemptResult) {}
func (NopMetrics) Item(ItemStatus, time.Duration) {}
func (NopMetrics) Batch(time.Duration) {}
