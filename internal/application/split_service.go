package application

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/rs/zerolog"
)

type SplitRequest struct {
	Input             string
	OutputName        string
	PlacementsPerFile int
	DryRun            bool
}

func (r SplitRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Input) == "":
		return fmt.Errorf("%w: input file is required", domain.ErrInvalidSettings)
	case !strings.EqualFold(filepath.Ext(r.Input), kmlExtension):
		return fmt.Errorf("%w: input file must be a %s file: %s", domain.ErrInvalidSettings, kmlExtension, r.Input)
	case strings.TrimSpace(r.OutputName) == "":
		return fmt.Errorf("%w: output file is required", domain.ErrInvalidSettings)
	case r.PlacementsPerFile < 1:
		return fmt.Errorf("%w: placements per file must be at least 1, got %d", domain.ErrInvalidSettings, r.PlacementsPerFile)
	}
	return nil
}

type SplitResult struct {
	Placemarks int
	Files      int
	Written    []string
}

// SplitService breaks an existing KML document into smaller ones.
type SplitService struct {
	reader ports.DocumentReader
	store  ports.DocumentStore
	logger zerolog.Logger
}

func NewSplitService(reader ports.DocumentReader, store ports.DocumentStore, logger zerolog.Logger) *SplitService {
	return &SplitService{reader: reader, store: store, logger: logger}
}

func (s *SplitService) Split(ctx context.Context, req SplitRequest) (SplitResult, error) {
	if err := req.Validate(); err != nil {
		return SplitResult{}, err
	}

	doc, err := s.reader.Load(ctx, req.Input)
	if err != nil {
		return SplitResult{}, fmt.Errorf("load %s: %w", req.Input, err)
	}
	if len(doc.Placemarks) == 0 {
		return SplitResult{}, domain.ErrNoPlacemarks
	}

	doc.Name = DocumentName(req.OutputName)
	docs := doc.Split(req.PlacementsPerFile)
	result := SplitResult{Placemarks: len(doc.Placemarks), Files: len(docs)}
	if req.DryRun {
		return result, nil
	}

	names := ChunkNames(req.OutputName, len(docs))
	for i, chunk := range docs {
		location, err := s.store.Save(ctx, chunk, names[i])
		if err != nil {
			return result, fmt.Errorf("save %s: %w", names[i], err)
		}
		s.logger.Debug().Str("location", location).Int("placemarks", len(chunk.Placemarks)).Msg("chunk written")
		result.Written = append(result.Written, location)
	}

	return result, nil
}
