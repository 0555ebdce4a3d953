package ports

import (
	"context"

	"github.com/bnema/kmlx/internal/domain"
)

// DocumentStore persists a placemark document under a name relative to the
// store's location and returns where it ended up.
type DocumentStore interface {
	Save(ctx context.Context, doc domain.Document, name string) (string, error)
}

type DocumentReader interface {
	Load(ctx context.Context, path string) (domain.Document, error)
}
