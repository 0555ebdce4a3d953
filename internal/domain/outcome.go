package domain

import (
	"fmt"
	"sort"
	"time"
)

type RowError struct {
	RowIndex    int
	ColumnIndex int
	Row         string
	Message     string
	OccurredAt  time.Time
}

func (e RowError) String() string {
	return fmt.Sprintf("%s - Row: %d. column: %d. Error: %s. Data: [%s]",
		e.OccurredAt.Format(time.RFC3339), e.RowIndex, e.ColumnIndex, e.Message, e.Row)
}

// Outcome aggregates the placemarks and row errors of one resolution run.
type Outcome struct {
	Errors     []RowError
	Placemarks []Placemark
	// Stopped is set when stop-on-error cut the run short.
	Stopped bool
}

func (o Outcome) IsSuccess() bool {
	return len(o.Errors) == 0
}

func (o *Outcome) Merge(other Outcome) {
	o.Errors = append(o.Errors, other.Errors...)
	o.Placemarks = append(o.Placemarks, other.Placemarks...)
	o.Stopped = o.Stopped || other.Stopped
}

// Sort orders placemarks and errors by source row.
func (o *Outcome) Sort() {
	SortPlacemarks(o.Placemarks)
	SortRowErrors(o.Errors)
}

func SortPlacemarks(placemarks []Placemark) {
	sort.SliceStable(placemarks, func(i, j int) bool {
		return placemarks[i].RowNumber < placemarks[j].RowNumber
	})
}

func SortRowErrors(errs []RowError) {
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].RowIndex < errs[j].RowIndex
	})
}

// Ingest is what a place source produced from one input file.
type Ingest struct {
	Source     string
	References []PlaceReference
	Errors     []RowError
}

func (i Ingest) HasErrors() bool {
	return len(i.Errors) > 0
}
