package ports

import (
	"context"
	"time"

	"github.com/bnema/kmlx/internal/domain"
)

type ErrorReport struct {
	RunAt       time.Time
	SourceFiles []string
	Errors      []domain.RowError
}

type ErrorLog interface {
	Save(ctx context.Context, report ErrorReport) error
	Load(ctx context.Context) (ErrorReport, error)
}
