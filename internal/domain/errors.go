package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedURLFormat = errors.New("url does not match any existing parser")
	ErrMissingCoordinates    = errors.New("url does not contain coordinates")
	ErrSessionCreation       = errors.New("session creation failed")
	ErrNavigation            = errors.New("navigation failed")
	ErrRendererTimeout       = errors.New("timed out waiting for renderer")
	ErrRetryExhausted        = errors.New("retry attempts exhausted")
	ErrStoppedOnError        = errors.New("stopped on first error")
	ErrInvalidSettings       = errors.New("invalid settings")
	ErrNoPlacemarks          = errors.New("no placemarks to write")
)

// SessionCreationError reports a browsing session that could not be started.
type SessionCreationError struct {
	Backend string
	Err     error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, ErrSessionCreation, e.Err)
}

func (e *SessionCreationError) Unwrap() []error {
	return []error{ErrSessionCreation, e.Err}
}
