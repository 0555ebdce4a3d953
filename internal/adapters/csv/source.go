// Package csv reads saved-place exports into place references.
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/rs/zerolog"
)

const (
	columnTitle   = "title"
	columnNote    = "note"
	columnURL     = "url"
	columnComment = "comment"

	utf8BOM = "\ufeff"
)

var errMissingURL = errors.New("row has no URL value")

type Source struct {
	logger zerolog.Logger
}

var _ ports.PlaceSource = (*Source)(nil)

func NewSource(logger zerolog.Logger) *Source {
	return &Source{logger: logger}
}

func (s *Source) Read(ctx context.Context, path string) (domain.Ingest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Ingest{}, fmt.Errorf("read csv file: %w", err)
	}

	ingest, err := Parse(ctx, bytes.NewReader(data), lines(data))
	if err != nil {
		return domain.Ingest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	ingest.Source = path

	s.logger.Debug().
		Str("file", path).
		Int("references", len(ingest.References)).
		Int("errors", len(ingest.Errors)).
		Msg("csv file read")

	return ingest, nil
}

// Parse decodes a header-mapped export. Malformed rows are collected as row
// errors; only an unusable header fails the whole input. raw holds the
// physical lines of the input, used to quote bad rows back in errors.
func Parse(ctx context.Context, r io.Reader, raw []string) (domain.Ingest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Ingest{}, errors.New("file is empty")
		}
		return domain.Ingest{}, fmt.Errorf("read header: %w", err)
	}
	columns := mapHeader(header)
	urlColumn, ok := columns[columnURL]
	if !ok {
		return domain.Ingest{}, fmt.Errorf("header has no %q column: %s", "URL", strings.Join(header, ","))
	}

	var ingest domain.Ingest
	for {
		if err := ctx.Err(); err != nil {
			return domain.Ingest{}, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			ingest.Errors = append(ingest.Errors, domain.RowError{
				RowIndex:    parseErr.StartLine,
				ColumnIndex: parseErr.Column,
				Row:         rawLine(raw, parseErr.StartLine),
				Message:     parseErr.Err.Error(),
			})
			continue
		}
		if err != nil {
			return domain.Ingest{}, fmt.Errorf("read record: %w", err)
		}

		line, _ := reader.FieldPos(0)
		ref := domain.PlaceReference{
			RowNumber: line,
			Title:     field(record, columns, columnTitle),
			Note:      field(record, columns, columnNote),
			URL:       field(record, columns, columnURL),
			Comment:   field(record, columns, columnComment),
		}
		if ref.URL == "" {
			ingest.Errors = append(ingest.Errors, domain.RowError{
				RowIndex:    line,
				ColumnIndex: urlColumn + 1,
				Row:         strings.Join(record, ","),
				Message:     errMissingURL.Error(),
			})
			continue
		}
		ingest.References = append(ingest.References, ref)
	}

	return ingest, nil
}

func mapHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func lines(data []byte) []string {
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
}

func rawLine(raw []string, line int) string {
	if line < 1 || line > len(raw) {
		return ""
	}
	return raw[line-1]
}
