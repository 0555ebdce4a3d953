package application

import (
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
)

const directStage = "Resolving search locations"

// ResolveDirect maps references whose URLs already carry coordinates. It runs
// sequentially, without sessions or retries, and never stops early.
func ResolveDirect(refs []domain.PlaceReference, includeComments bool, clock ports.Clock, progress ports.ProgressReporter) domain.Outcome {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}

	var outcome domain.Outcome
	started := clock.Now()
	for i, ref := range refs {
		placemark, err := domain.ResolvePlacemark(ref, includeComments)
		if err != nil {
			outcome.Errors = append(outcome.Errors, domain.RowError{
				RowIndex:   ref.RowNumber,
				Row:        ref.DisplayName(),
				Message:    err.Error(),
				OccurredAt: clock.Now(),
			})
		} else {
			outcome.Placemarks = append(outcome.Placemarks, placemark)
		}

		elapsed := clock.Now().Sub(started)
		progress.Report(domain.Progress{
			Stage:     directStage,
			Done:      i + 1,
			Total:     len(refs),
			Elapsed:   elapsed,
			Remaining: elapsed / time.Duration(i+1) * time.Duration(len(refs)-i-1),
		})
	}

	return outcome
}
