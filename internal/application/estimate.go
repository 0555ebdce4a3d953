package application

import (
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/domain"
)

const (
	// Each item usually needs about two poll ticks before the coordinates show up.
	estimatePollsPerItem = 2.0
	// Parallel sessions do not scale linearly: startup and page load contend.
	estimateSpinupFactor = 0.75
)

// EstimateRunTime predicts how long resolving count items through browsing
// sessions takes. It is advisory only.
func EstimateRunTime(count int, settings ResolveSettings) time.Duration {
	if count <= 0 {
		return 0
	}
	parallelism := settings.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	perItem := float64(settings.PollInterval) * estimatePollsPerItem
	return time.Duration(float64(count) * perItem / (float64(parallelism) * estimateSpinupFactor))
}

func EstimateText(count int, settings ResolveSettings) string {
	return fmt.Sprintf("Parsing %d Google data locations. Est. time: %s", count, domain.FormatClock(EstimateRunTime(count, settings)))
}
