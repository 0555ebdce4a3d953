package ports

import "context"

// Session is one stateful browsing session. A session is driven by a single
// caller at a time.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

type SessionBackend interface {
	Name() string
	NewSession(ctx context.Context) (Session, error)
}
