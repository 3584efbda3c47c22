package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/store"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/version"
)

// Snapshot sources.
const (
	SourceCalibration = "calibration"
	SourceManual      = "manual"
)

// Snapshot is one persisted parameter set.
type Snapshot struct {
	Version      uint64           `json:"params_version"`
	Parameters   model.Parameters `json:"parameters"`
	ModelVersion string           `json:"model_version"`
	Source       string           `json:"source"`
	CreatedAt    time.Time        `json:"created_at"`
}

// RecordCalibration stores rec and the parameter snapshot it committed in a
// single transaction. It satisfies calibration.Recorder.
func (db *DB) RecordCalibration(ctx context.Context, rec store.CalibrationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	paramsJSON, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	return retryOnBusy(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO calibration_records (
				record_id, iteration, params_version, params_json, mae, success,
				status, major_iterations, evaluations, row_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Iteration, rec.ParamsVersion, string(paramsJSON), rec.MAE, rec.Success,
			rec.Status, rec.MajorIterations, rec.Evaluations, rec.Rows, rec.Timestamp.UnixNano(),
		); err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, rec.ParamsVersion, paramsJSON, SourceCalibration, rec.Timestamp); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListCalibrations returns every stored record, oldest first.
func (db *DB) ListCalibrations(ctx context.Context) ([]store.CalibrationRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT record_id, iteration, params_version, params_json, mae, success,
		       status, major_iterations, evaluations, row_count, created_at
		FROM calibration_records
		ORDER BY iteration ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration records: %w", err)
	}
	defer rows.Close()

	var out []store.CalibrationRecord
	for rows.Next() {
		var (
			rec        store.CalibrationRecord
			paramsJSON string
			createdAt  int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Iteration, &rec.ParamsVersion, &paramsJSON, &rec.MAE, &rec.Success,
			&rec.Status, &rec.MajorIterations, &rec.Evaluations, &rec.Rows, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan calibration record: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters for %s: %w", rec.ID, err)
		}
		rec.Timestamp = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSnapshot stores a parameter set outside of calibration, for example an
// explicit user edit. Saving the same version twice replaces the earlier row.
func (db *DB) SaveSnapshot(ctx context.Context, version uint64, p model.Parameters, source string) error {
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	return retryOnBusy(func() error {
		return insertSnapshot(ctx, db.DB, version, paramsJSON, source, time.Now())
	})
}

// LatestSnapshot returns the highest-versioned parameter set. ok is false
// when nothing has been saved yet.
func (db *DB) LatestSnapshot(ctx context.Context) (snap Snapshot, ok bool, err error) {
	var (
		paramsJSON string
		createdAt  int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT params_version, params_json, model_version, source, created_at
		FROM parameter_snapshots
		ORDER BY params_version DESC
		LIMIT 1`,
	).Scan(&snap.Version, &paramsJSON, &snap.ModelVersion, &snap.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &snap.Parameters); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to decode snapshot v%d: %w", snap.Version, err)
	}
	snap.CreatedAt = time.Unix(0, createdAt).UTC()
	return snap, true, nil
}

// LoadInto restores the latest snapshot and the full calibration history
// into s. It reports whether anything was restored.
func (db *DB) LoadInto(ctx context.Context, s *store.Store) (bool, error) {
	snap, ok, err := db.LatestSnapshot(ctx)
	if err != nil || !ok {
		return false, err
	}
	if snap.ModelVersion != version.ModelVersion {
		logf("snapshot v%d was written by model %q, running %q", snap.Version, snap.ModelVersion, version.ModelVersion)
	}
	hist, err := db.ListCalibrations(ctx)
	if err != nil {
		return false, err
	}
	s.Restore(snap.Parameters, snap.Version, hist)
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSnapshot(ctx context.Context, ex execer, ver uint64, paramsJSON []byte, source string, at time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO parameter_snapshots (
			params_version, params_json, model_version, source, created_at
		) VALUES (?, ?, ?, ?, ?)`,
		ver, string(paramsJSON), version.ModelVersion, source, at.UnixNano(),
	)
	return err
}
