package ports

import "github.com/bnema/kmlx/internal/domain"

type ProgressReporter interface {
	Report(progress domain.Progress)
}

type NopProgress struct{}

func (NopProgress) Report(domain.Progress) {}
