package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mrcode/pen-tracker/internal/models"
)

const (
	bucketObservations = "observations"
	bucketGoal         = "goal"
)

// SQLiteRepository persists snapshots as JSON payloads in a bucketed SQLite table
type SQLiteRepository struct {
	db   *sql.DB
	log  *zap.Logger
	mu   sync.Mutex
	path string
}

// NewSQLiteRepository opens (or creates) the database at path
func NewSQLiteRepository(path string, log *zap.Logger) (*SQLiteRepository, error) {
	if path == "" {
		path = "entries.db"
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &SQLiteRepository{db: db, log: log, path: path}, nil
}

// Path returns the database path
func (r *SQLiteRepository) Path() string { return r.path }

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// LoadSnapshot reads the observations bucket. An empty database is an empty log.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) ([]models.Observation, error) {
	payload, ok, err := r.get(ctx, bucketObservations)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Observation{}, nil
	}

	observations, rejected, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	logRejections(r.log, r.path, rejected)
	return observations, nil
}

// SaveSnapshot replaces the observations bucket
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, observations []models.Observation) error {
	data, err := Encode(observations)
	if err != nil {
		return err
	}
	if err := r.put(ctx, bucketObservations, data); err != nil {
		return err
	}
	r.log.Debug("snapshot saved", zap.String("path", r.path), zap.Int("observations", len(observations)))
	return nil
}

// LoadGoal reads the goal bucket
func (r *SQLiteRepository) LoadGoal(ctx context.Context) (models.GoalSettings, bool, error) {
	payload, ok, err := r.get(ctx, bucketGoal)
	if err != nil || !ok {
		return models.GoalSettings{}, false, err
	}
	var goal models.GoalSettings
	if err := json.Unmarshal(payload, &goal); err != nil {
		return models.GoalSettings{}, false, fmt.Errorf("decode goal: %w", err)
	}
	return goal, true, nil
}

// SaveGoal replaces the goal bucket
func (r *SQLiteRepository) SaveGoal(ctx context.Context, goal models.GoalSettings) error {
	data, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("encode goal: %w", err)
	}
	return r.put(ctx, bucketGoal, data)
}

func (r *SQLiteRepository) get(ctx context.Context, bucket string) ([]byte, bool, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", bucket, err)
	}
	return payload, true, nil
}

func (r *SQLiteRepository) put(ctx context.Context, bucket string, data []byte) (retErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		bucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", bucket, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
