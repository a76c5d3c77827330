// Package runlog persists measurement run outcomes to sqlite so batches
// of pipeline invocations can be inspected after the fact.
package runlog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/UWCubeSat/found-integration-testing/internal/measure"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the run-history database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			run_dir           TEXT,
			image_path        TEXT,
			success           BOOLEAN,
			error             TEXT,
			num_edges         BIGINT,
			distance_m        DOUBLE,
			altitude_m        DOUBLE,
			ground_truth_m    DOUBLE,
			error_m           DOUBLE,
			error_percent     DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &DB{db}, nil
}

// RecordRun inserts one finished run, success or failure.
func (db *DB) RecordRun(runID, runDir, imagePath string, r measure.Result) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, run_dir, image_path, success, error,
			num_edges, distance_m, altitude_m, ground_truth_m, error_m, error_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, runDir, imagePath, r.Success, r.Error,
		r.NumEdges, r.DistanceM, r.AltitudeM, r.GroundTruthM, r.ErrorM, r.ErrorPercent)
	if err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	return nil
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID     string
	RunDir    string
	ImagePath string
	Result    measure.Result
	Timestamp string
}

// RecentRuns returns up to n runs, newest first.
func (db *DB) RecentRuns(n int) ([]RunRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, run_dir, image_path, success, error,
			num_edges, distance_m, altitude_m, ground_truth_m, error_m, error_percent, timestamp
		FROM runs ORDER BY timestamp DESC, run_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		err := rows.Scan(&rec.RunID, &rec.RunDir, &rec.ImagePath,
			&rec.Result.Success, &rec.Result.Error,
			&rec.Result.NumEdges, &rec.Result.DistanceM, &rec.Result.AltitudeM,
			&rec.Result.GroundTruthM, &rec.Result.ErrorM, &rec.Result.ErrorPercent,
			&rec.Timestamp)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
