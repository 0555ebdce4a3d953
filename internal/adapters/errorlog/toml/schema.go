package toml

import (
	"fmt"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version     int              `toml:"version"`
	RunAt       string           `toml:"run_at"`
	SourceFiles []string         `toml:"source_files"`
	Errors      []rowErrorSchema `toml:"errors"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported error log schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type rowErrorSchema struct {
	RowIndex    int    `toml:"row_index"`
	ColumnIndex int    `toml:"column_index"`
	Row         string `toml:"row"`
	Message     string `toml:"message"`
	OccurredAt  string `toml:"occurred_at,omitempty"`
}

func toSchema(report ports.ErrorReport) fileSchema {
	file := fileSchema{
		Version:     currentSchemaVersion,
		RunAt:       formatTime(report.RunAt),
		SourceFiles: append([]string(nil), report.SourceFiles...),
		Errors:      make([]rowErrorSchema, 0, len(report.Errors)),
	}
	for _, rowErr := range report.Errors {
		file.Errors = append(file.Errors, rowErrorSchema{
			RowIndex:    rowErr.RowIndex,
			ColumnIndex: rowErr.ColumnIndex,
			Row:         rowErr.Row,
			Message:     rowErr.Message,
			OccurredAt:  formatTime(rowErr.OccurredAt),
		})
	}
	return file
}

func fromSchema(file fileSchema) (ports.ErrorReport, error) {
	runAt, err := parseTime(file.RunAt)
	if err != nil {
		return ports.ErrorReport{}, fmt.Errorf("decode run_at: %w", err)
	}

	report := ports.ErrorReport{
		RunAt:       runAt,
		SourceFiles: file.SourceFiles,
		Errors:      make([]domain.RowError, 0, len(file.Errors)),
	}
	for i, entry := range file.Errors {
		occurredAt, err := parseTime(entry.OccurredAt)
		if err != nil {
			return ports.ErrorReport{}, fmt.Errorf("decode errors[%d].occurred_at: %w", i, err)
		}
		report.Errors = append(report.Errors, domain.RowError{
			RowIndex:    entry.RowIndex,
			ColumnIndex: entry.ColumnIndex,
			Row:         entry.Row,
			Message:     entry.Message,
			OccurredAt:  occurredAt,
		})
	}
	return report, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
