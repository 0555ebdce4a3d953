// Package toml persists run error logs as versioned TOML files.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/kmlx/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	logFileMode     = 0o644
	logDirMode      = 0o755
	logSuffix       = ".errors.toml"
	tempFilePattern = ".kmlx-errors-*.toml.tmp"
)

type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ErrorLog = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("error log path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve error log path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Store{path: absPath, mu: lockForPath(absPath)}, nil
}

// DefaultPath places the error log next to the output: trip.kml logs to
// trip.errors.toml.
func DefaultPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + logSuffix
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Save(ctx context.Context, report ports.ErrorReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeSchema(toSchema(report))
}

func (s *Store) Load(ctx context.Context) (ports.ErrorReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.ErrorReport{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return ports.ErrorReport{}, fmt.Errorf("read error log: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return ports.ErrorReport{}, fmt.Errorf("decode error log: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return ports.ErrorReport{}, err
	}
	file.applyDefaults()

	return fromSchema(file)
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), logDirMode); err != nil {
		return fmt.Errorf("create error log directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp error log: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp error log: %w", err)
	}

	if err := tempFile.Chmod(logFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp error log: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp error log: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace error log: %w", err)
	}

	cleanup = false
	return nil
}
