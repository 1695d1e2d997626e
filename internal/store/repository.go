package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/models"
)

// Repository loads and saves complete observation snapshots
type Repository interface {
	LoadSnapshot(ctx context.Context) ([]models.Observation, error)
	SaveSnapshot(ctx context.Context, observations []models.Observation) error
}

// GoalRepository is implemented by repositories that also persist the goal
type GoalRepository interface {
	LoadGoal(ctx context.Context) (models.GoalSettings, bool, error)
	SaveGoal(ctx context.Context, goal models.GoalSettings) error
}

// JSONFileRepository keeps the snapshot in a single JSON file
type JSONFileRepository struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewJSONFileRepository creates a repository backed by the file at path
func NewJSONFileRepository(path string, log *zap.Logger) *JSONFileRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONFileRepository{path: path, log: log}
}

// Path returns the snapshot file path
func (r *JSONFileRepository) Path() string { return r.path }

// LoadSnapshot reads the snapshot file. A missing file is an empty log.
// Records that cannot be admitted are logged and skipped.
func (r *JSONFileRepository) LoadSnapshot(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path) //nolint:gosec // Snapshot path comes from settings
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Observation{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	observations, rejected, err := Decode(data)
	if err != nil {
		return nil, err
	}
	logRejections(r.log, r.path, rejected)
	return observations, nil
}

// SaveSnapshot writes the snapshot atomically via a temporary file and rename
func (r *JSONFileRepository) SaveSnapshot(ctx context.Context, observations []models.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(observations)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	r.log.Debug("snapshot saved", zap.String("path", r.path), zap.Int("observations", len(observations)))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func logRejections(log *zap.Logger, source string, rejected []Rejection) {
	for _, rj := range rejected {
		log.Warn("skipping snapshot record",
			zap.String("source", source),
			zap.Int("index", rj.Index),
			zap.Error(rj.Err),
		)
	}
}
