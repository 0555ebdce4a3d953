package kml

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
)

const (
	fileMode        = 0o644
	dirMode         = 0o755
	tempFilePattern = ".kmlx-*.kml.tmp"
)

// FileStore writes documents under Dir and reads them back from any path.
type FileStore struct {
	Dir string
}

var (
	_ ports.DocumentStore  = FileStore{}
	_ ports.DocumentReader = FileStore{}
)

func (s FileStore) Save(ctx context.Context, doc domain.Document, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("create temp kml file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	buffered := bufio.NewWriter(tempFile)
	if err := Encode(buffered, doc); err != nil {
		_ = tempFile.Close()
		return "", err
	}
	if err := buffered.Flush(); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("write temp kml file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("chmod temp kml file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close temp kml file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return "", fmt.Errorf("replace kml file: %w", err)
	}
	cleanup = false

	return path, nil
}

func (s FileStore) Load(ctx context.Context, path string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open kml file: %w", err)
	}
	defer file.Close()

	return Decode(bufio.NewReader(file))
}

func (s FileStore) path(name string) string {
	if !strings.EqualFold(filepath.Ext(name), Extension) {
		name += Extension
	}
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}
