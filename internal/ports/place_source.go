package ports

import (
	"context"

	"github.com/bnema/kmlx/internal/domain"
)

type PlaceSource interface {
	Read(ctx context.Context, path string) (domain.Ingest, error)
}
