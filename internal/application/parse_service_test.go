package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	ingests map[string]domain.Ingest
}

func (s memorySource) Read(_ context.Context, path string) (domain.Ingest, error) {
	ingest, ok := s.ingests[path]
	if !ok {
		return domain.Ingest{}, errors.New("file not found")
	}
	return ingest, nil
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]domain.Document
	names []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string]domain.Document)}
}

func (s *memoryStore) Save(_ context.Context, doc domain.Document, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[name] = doc
	s.names = append(s.names, name)
	return "/out/" + name, nil
}

func (s *memoryStore) Load(_ context.Context, path string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.saved[path]
	if !ok {
		return domain.Document{}, errors.New("document not found")
	}
	return doc, nil
}

type memoryErrorLog struct {
	reports []ports.ErrorReport
}

func (l *memoryErrorLog) Save(_ context.Context, report ports.ErrorReport) error {
	l.reports = append(l.reports, report)
	return nil
}

func (l *memoryErrorLog) Load(context.Context) (ports.ErrorReport, error) {
	if len(l.reports) == 0 {
		return ports.ErrorReport{}, errors.New("no report")
	}
	return l.reports[len(l.reports)-1], nil
}

var parseNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestParseService(source ports.PlaceSource, backend *fakeBackend, store *memoryStore, errorLog *memoryErrorLog) *ParseService {
	resolver := NewResolutionService(backend, nil, nil, zerolog.Nop())
	var log ports.ErrorLog
	if errorLog != nil {
		log = errorLog
	}
	return NewParseService(source, resolver, store, log, fixedClock{now: parseNow}, zerolog.Nop())
}

func mixedIngest() domain.Ingest {
	return domain.Ingest{
		Source: "saved.csv",
		References: []domain.PlaceReference{
			placeRef(4, "Camp"),
			searchRef(2, "33.895,-112.333"),
			{RowNumber: 3, URL: "https://example.com/somewhere", Title: "Odd"},
			searchRef(5, "10.5,20.25"),
		},
	}
}

func TestParseServiceResolvesAndWritesSortedDocument(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	errorLog := &memoryErrorLog{}
	backend := newFakeBackend()
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"saved.csv": mixedIngest()}}, backend, store, errorLog)

	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"saved.csv"},
		OutputName: "trip.kml",
		Settings:   fastSettings(),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SearchCount)
	assert.Equal(t, 1, result.PlaceCount)
	assert.Equal(t, 1, result.UnknownCount)
	assert.Equal(t, []string{"/out/trip.kml"}, result.Written)
	assert.False(t, result.Stopped())

	doc := store.saved["trip.kml"]
	assert.Equal(t, "trip", doc.Name)
	require.Len(t, doc.Placemarks, 3)
	assert.Equal(t, []int{2, 4, 5}, []int{doc.Placemarks[0].RowNumber, doc.Placemarks[1].RowNumber, doc.Placemarks[2].RowNumber})
	assert.Equal(t, "-112.333,33.895", doc.Placemarks[0].Coordinates)

	require.Len(t, result.Outcome.Errors, 1)
	assert.Equal(t, 3, result.Outcome.Errors[0].RowIndex)
	assert.Contains(t, result.Outcome.Errors[0].Message, domain.ErrUnrecognizedURLFormat.Error())
	assert.True(t, result.ErrorLogWritten)
	require.Len(t, errorLog.reports, 1)
	assert.Equal(t, parseNow, errorLog.reports[0].RunAt)
	assert.Equal(t, []string{"saved.csv"}, errorLog.reports[0].SourceFiles)

	events := make([]string, 0, len(result.Stats))
	for _, stat := range result.Stats {
		events = append(events, stat.Event)
	}
	assert.Equal(t, []string{StageReadCSV, StageResolveSearch, StageResolvePlaces, StageWriteKML, StageWriteErrorLog}, events)
}

func TestParseServiceDryRunOnlyEstimates(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	backend := newFakeBackend()
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"saved.csv": mixedIngest()}}, backend, store, nil)

	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"saved.csv"},
		OutputName: "trip.kml",
		DryRun:     true,
		Settings:   fastSettings(),
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, result.Estimate, "Parsing 1 Google data locations")
	assert.Empty(t, store.names)
	assert.Equal(t, 0, backend.totalNavigations())
}

func TestParseServiceStopsOnIngestErrors(t *testing.T) {
	t.Parallel()

	ingest := mixedIngest()
	ingest.Errors = []domain.RowError{{RowIndex: 9, Row: "bad,row", Message: "missing URL"}}
	store := newMemoryStore()
	errorLog := &memoryErrorLog{}
	backend := newFakeBackend()
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"saved.csv": ingest}}, backend, store, errorLog)

	settings := fastSettings()
	settings.StopOnError = true
	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"saved.csv"},
		OutputName: "trip.kml",
		Settings:   settings,
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Stopped())
	assert.Empty(t, store.names)
	assert.Equal(t, 0, backend.totalNavigations())
	require.Len(t, errorLog.reports, 1)
	assert.Equal(t, 9, errorLog.reports[0].Errors[0].RowIndex)
}

func TestParseServiceStopsAfterFailingSearchStage(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	backend := newFakeBackend()
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"saved.csv": mixedIngest()}}, backend, store, &memoryErrorLog{})

	settings := fastSettings()
	settings.StopOnError = true
	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"saved.csv"},
		OutputName: "trip.kml",
		Settings:   settings,
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Stopped())
	assert.Empty(t, store.names)
	assert.Equal(t, 0, backend.totalNavigations())
}

func TestParseServiceSplitsOutputWithEveryChunk(t *testing.T) {
	t.Parallel()

	ingest := domain.Ingest{References: []domain.PlaceReference{
		searchRef(1, "1,1"),
		searchRef(2, "2,2"),
		searchRef(3, "3,3"),
	}}
	store := newMemoryStore()
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"a.csv": ingest}}, newFakeBackend(), store, nil)

	result, err := service.Parse(context.Background(), ParseRequest{
		Files:             []string{"a.csv"},
		OutputName:        "out.kml",
		PlacementsPerFile: 2,
		Settings:          fastSettings(),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"/out/out1.kml", "/out/out2.kml"}, result.Written)
	assert.Len(t, store.saved["out1.kml"].Placemarks, 2)
	require.Len(t, store.saved["out2.kml"].Placemarks, 1)
	assert.Equal(t, 3, store.saved["out2.kml"].Placemarks[0].RowNumber)
}

func TestParseServiceMergesErrorsFromEveryFile(t *testing.T) {
	t.Parallel()

	source := memorySource{ingests: map[string]domain.Ingest{
		"b.csv": {References: []domain.PlaceReference{searchRef(2, "2,2")}, Errors: []domain.RowError{{RowIndex: 7, Message: "b"}}},
		"a.csv": {References: []domain.PlaceReference{searchRef(1, "1,1")}, Errors: []domain.RowError{{RowIndex: 3, Message: "a"}}},
	}}
	service := newTestParseService(source, newFakeBackend(), newMemoryStore(), nil)

	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"b.csv", "a.csv"},
		OutputName: "out.kml",
		Settings:   fastSettings(),
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Outcome.Errors, 2)
	assert.Equal(t, 3, result.Outcome.Errors[0].RowIndex)
	assert.Equal(t, 7, result.Outcome.Errors[1].RowIndex)
}

func TestParseServiceFailsWithoutPlacemarks(t *testing.T) {
	t.Parallel()

	ingest := domain.Ingest{References: []domain.PlaceReference{{RowNumber: 1, URL: "https://example.com"}}}
	errorLog := &memoryErrorLog{}
	service := newTestParseService(memorySource{ingests: map[string]domain.Ingest{"a.csv": ingest}}, newFakeBackend(), newMemoryStore(), errorLog)

	result, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"a.csv"},
		OutputName: "out.kml",
		Settings:   fastSettings(),
	}, nil)
	require.ErrorIs(t, err, domain.ErrNoPlacemarks)
	assert.True(t, result.ErrorLogWritten)
}

func TestParseServiceReportsMissingFile(t *testing.T) {
	t.Parallel()

	service := newTestParseService(memorySource{}, newFakeBackend(), newMemoryStore(), nil)

	_, err := service.Parse(context.Background(), ParseRequest{
		Files:      []string{"missing.csv"},
		OutputName: "out.kml",
		Settings:   fastSettings(),
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read missing.csv")
}

func TestParseServiceValidatesRequest(t *testing.T) {
	t.Parallel()

	service := newTestParseService(memorySource{}, newFakeBackend(), newMemoryStore(), nil)

	_, err := service.Parse(context.Background(), ParseRequest{OutputName: "out.kml", Settings: fastSettings()}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidSettings)

	_, err = service.Parse(context.Background(), ParseRequest{Files: []string{"a.csv"}, PlacementsPerFile: -1, Settings: fastSettings()}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestChunkNamesAndDocumentName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "trip", DocumentName("/tmp/out/trip.kml"))
	assert.Equal(t, "trip", DocumentName("trip"))
	assert.Equal(t, "places", DocumentName(""))
	assert.Equal(t, []string{"trip.kml"}, ChunkNames("trip.kml", 1))
	assert.Equal(t, []string{"trip1.kml", "trip2.kml", "trip3.kml"}, ChunkNames("dir/trip.kml", 3))
}
