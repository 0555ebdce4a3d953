package domain

import (
	"fmt"
	"time"
)

type Progress struct {
	Stage     string
	Done      int
	Total     int
	Elapsed   time.Duration
	Remaining time.Duration
}

func (p Progress) String() string {
	return fmt.Sprintf("%s %d of %d. Est. remaining %s", p.Stage, p.Done, p.Total, FormatClock(p.Remaining))
}

type Stat struct {
	Event string
	Total time.Duration
}

// FormatClock renders a duration as HH:MM:SS, with hours allowed past 24.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	hours := int(d / time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)
	seconds := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
