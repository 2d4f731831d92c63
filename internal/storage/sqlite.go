//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gaugehmc/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAt.UnixNano(), run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Run{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *SQLiteStore) AppendTrajectories(ctx context.Context, runID string, trajectories []model.Trajectory) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectories (run_id, idx, accepted, delta_h, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			accepted = excluded.accepted,
			delta_h = excluded.delta_h,
			payload = excluded.payload
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trajectories {
		payload, err := EncodeTrajectories([]model.Trajectory{t})
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, t.Index, t.Accepted, t.DeltaH, payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTrajectories(ctx context.Context, runID string) ([]model.Trajectory, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM trajectories WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []model.Trajectory
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		ts, err := DecodeTrajectories(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode trajectories %s: %w", runID, err)
		}
		out = append(out, ts...)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *SQLiteStore) SaveMeasurements(ctx context.Context, runID string, measurements []model.Measurement) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeMeasurements(measurements)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO measurements (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetMeasurements(ctx context.Context, runID string) ([]model.Measurement, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM measurements WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	ms, err := DecodeMeasurements(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode measurements %s: %w", runID, err)
	}
	return ms, true, nil
}

func (s *SQLiteStore) SaveConfiguration(ctx context.Context, cfg model.Configuration) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeConfiguration(cfg)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO configurations (run_id, configuration, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			configuration = excluded.configuration,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, cfg.RunID, cfg.Configuration, cfg.SchemaVersion, cfg.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetConfiguration(ctx context.Context, runID string) (model.Configuration, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Configuration{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM configurations WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Configuration{}, false, nil
		}
		return model.Configuration{}, false, err
	}

	cfg, err := DecodeConfiguration(payload)
	if err != nil {
		return model.Configuration{}, false, fmt.Errorf("decode configuration %s: %w", runID, err)
	}
	return cfg, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trajectories (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			delta_h REAL NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
		CREATE TABLE IF NOT EXISTS measurements (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS configurations (
			run_id TEXT PRIMARY KEY,
			configuration INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
