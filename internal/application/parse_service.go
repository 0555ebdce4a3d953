package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	StageReadCSV        = "Read CSV"
	StageResolveSearch  = "Resolve search locations"
	StageResolvePlaces  = "Resolve place locations"
	StageWriteKML       = "Write KML"
	StageWriteErrorLog  = "Write error log"
	kmlExtension        = ".kml"
	defaultDocumentName = "places"
)

// PlaceResolver resolves place references that need a browsing session.
type PlaceResolver interface {
	Process(ctx context.Context, refs []domain.PlaceReference, settings ResolveSettings, progress ports.ProgressReporter) (domain.Outcome, error)
}

type ParseRequest struct {
	Files []string
	// OutputName is the file name handed to the document store, e.g. "places.kml".
	OutputName        string
	PlacementsPerFile int
	DryRun            bool
	Settings          ResolveSettings
}

type ParseResult struct {
	SearchCount  int
	PlaceCount   int
	UnknownCount int
	// Estimate is only set on dry runs.
	Estimate string
	Outcome  domain.Outcome
	Written  []string
	// ErrorLogWritten is set when the run's row errors were saved.
	ErrorLogWritten bool
	Stats           []domain.Stat
}

func (r ParseResult) Stopped() bool {
	return r.Outcome.Stopped
}

// ParseService reads place exports, resolves them and writes KML documents.
type ParseService struct {
	source   ports.PlaceSource
	resolver PlaceResolver
	store    ports.DocumentStore
	errorLog ports.ErrorLog
	clock    ports.Clock
	logger   zerolog.Logger
}

// NewParseService wires the parse pipeline. errorLog may be nil.
func NewParseService(source ports.PlaceSource, resolver PlaceResolver, store ports.DocumentStore, errorLog ports.ErrorLog, clock ports.Clock, logger zerolog.Logger) *ParseService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &ParseService{
		source:   source,
		resolver: resolver,
		store:    store,
		errorLog: errorLog,
		clock:    clock,
		logger:   logger,
	}
}

func (s *ParseService) Parse(ctx context.Context, req ParseRequest, progress ports.ProgressReporter) (ParseResult, error) {
	if err := req.Settings.Validate(); err != nil {
		return ParseResult{}, err
	}
	if len(req.Files) == 0 {
		return ParseResult{}, fmt.Errorf("%w: at least one input file is required", domain.ErrInvalidSettings)
	}
	if req.PlacementsPerFile < 0 {
		return ParseResult{}, fmt.Errorf("%w: placements per file must not be negative", domain.ErrInvalidSettings)
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}

	stats := NewStatRecorder(s.clock)
	result, err := s.run(ctx, req, progress, stats)
	result.Stats = stats.Results()
	return result, err
}

func (s *ParseService) run(ctx context.Context, req ParseRequest, progress ports.ProgressReporter, stats *StatRecorder) (ParseResult, error) {
	var result ParseResult

	var ingests []domain.Ingest
	err := stats.Track(StageReadCSV, func() error {
		var err error
		ingests, err = s.readAll(ctx, req.Files)
		return err
	})
	if err != nil {
		return result, err
	}

	var direct, sessions []domain.PlaceReference
	for _, ingest := range ingests {
		result.Outcome.Errors = append(result.Outcome.Errors, ingest.Errors...)
		for _, ref := range ingest.References {
			switch ref.Kind() {
			case domain.PlaceKindSearch:
				result.SearchCount++
				direct = append(direct, ref)
			case domain.PlaceKindPlace:
				result.PlaceCount++
				sessions = append(sessions, ref)
			default:
				result.UnknownCount++
				direct = append(direct, ref)
			}
		}
	}
	s.logger.Info().
		Int("search", result.SearchCount).
		Int("place", result.PlaceCount).
		Int("unknown", result.UnknownCount).
		Int("ingest_errors", len(result.Outcome.Errors)).
		Msg("references routed")

	if req.DryRun {
		result.Estimate = EstimateText(countNeedingSession(sessions), req.Settings)
		return result, nil
	}

	if req.Settings.StopOnError && !result.Outcome.IsSuccess() {
		return s.stop(ctx, req, result, stats)
	}

	_ = stats.Track(StageResolveSearch, func() error {
		result.Outcome.Merge(ResolveDirect(direct, req.Settings.IncludeComments, s.clock, progress))
		return nil
	})
	if req.Settings.StopOnError && !result.Outcome.IsSuccess() {
		return s.stop(ctx, req, result, stats)
	}

	err = stats.Track(StageResolvePlaces, func() error {
		outcome, err := s.resolver.Process(ctx, sessions, req.Settings, progress)
		result.Outcome.Merge(outcome)
		return err
	})
	if err != nil {
		return result, err
	}
	if result.Outcome.Stopped {
		return s.stop(ctx, req, result, stats)
	}
	result.Outcome.Sort()

	err = stats.Track(StageWriteKML, func() error {
		var err error
		result.Written, err = s.write(ctx, req, result.Outcome.Placemarks)
		return err
	})
	if err != nil {
		if logErr := s.writeErrorLog(ctx, req, &result, stats); logErr != nil {
			return result, errors.Join(err, logErr)
		}
		return result, err
	}

	if err := s.writeErrorLog(ctx, req, &result, stats); err != nil {
		return result, err
	}
	return result, nil
}

// readAll reads every file concurrently and keeps the results in file order.
func (s *ParseService) readAll(ctx context.Context, files []string) ([]domain.Ingest, error) {
	ingests := make([]domain.Ingest, len(files))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			ingest, err := s.source.Read(egCtx, file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			ingests[i] = ingest
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return ingests, nil
}

func (s *ParseService) stop(ctx context.Context, req ParseRequest, result ParseResult, stats *StatRecorder) (ParseResult, error) {
	result.Outcome.Stopped = true
	result.Outcome.Sort()
	s.logger.Warn().Int("errors", len(result.Outcome.Errors)).Msg("run stopped on first error")

	if err := s.writeErrorLog(ctx, req, &result, stats); err != nil {
		return result, err
	}
	return result, nil
}

func (s *ParseService) write(ctx context.Context, req ParseRequest, placemarks []domain.Placemark) ([]string, error) {
	if len(placemarks) == 0 {
		return nil, domain.ErrNoPlacemarks
	}

	doc := domain.Document{Name: DocumentName(req.OutputName), Placemarks: placemarks}
	docs := doc.Split(req.PlacementsPerFile)
	names := ChunkNames(req.OutputName, len(docs))

	written := make([]string, 0, len(docs))
	for i, chunk := range docs {
		location, err := s.store.Save(ctx, chunk, names[i])
		if err != nil {
			return written, fmt.Errorf("save %s: %w", names[i], err)
		}
		s.logger.Info().Str("location", location).Int("placemarks", len(chunk.Placemarks)).Msg("kml written")
		written = append(written, location)
	}

	return written, nil
}

func (s *ParseService) writeErrorLog(ctx context.Context, req ParseRequest, result *ParseResult, stats *StatRecorder) error {
	if s.errorLog == nil || len(result.Outcome.Errors) == 0 {
		return nil
	}

	err := stats.Track(StageWriteErrorLog, func() error {
		return s.errorLog.Save(ctx, ports.ErrorReport{
			RunAt:       s.clock.Now(),
			SourceFiles: append([]string(nil), req.Files...),
			Errors:      result.Outcome.Errors,
		})
	})
	if err != nil {
		return fmt.Errorf("save error log: %w", err)
	}
	result.ErrorLogWritten = true
	return nil
}

// DocumentName is the output file name without directory or extension.
func DocumentName(outputName string) string {
	base := filepath.Base(outputName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return defaultDocumentName
	}
	return base
}

// ChunkNames names count output files. A single file keeps the output name;
// several files are numbered from 1 after the base name.
func ChunkNames(outputName string, count int) []string {
	base := DocumentName(outputName)
	if count == 1 {
		return []string{base + kmlExtension}
	}

	names := make([]string, count)
	for i := range names {
		names[i] = base + strconv.Itoa(i+1) + kmlExtension
	}
	return names
}
