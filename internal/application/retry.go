package application

import (
	"context"
	"errors"
)

type AttemptState int

const (
	AttemptSucceeded AttemptState = iota
	AttemptRetryable
	AttemptTerminal
)

func (s AttemptState) String() string {
	switch s {
	case AttemptSucceeded:
		return "succeeded"
	case AttemptRetryable:
		return "retryable"
	case AttemptTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// RetryPolicy decides what follows an attempt. MaxAttempts counts every
// attempt, the first one included.
type RetryPolicy struct {
	MaxAttempts int
}

// Next classifies the outcome of attempt n (1-based).
func (p RetryPolicy) Next(attempt int, err error) AttemptState {
	if err == nil {
		return AttemptSucceeded
	}
	if errors.Is(err, context.Canceled) {
		return AttemptTerminal
	}
	if attempt >= p.MaxAttempts {
		return AttemptTerminal
	}
	return AttemptRetryable
}
