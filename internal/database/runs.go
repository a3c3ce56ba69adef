package database

import (
	"database/sql"
	"time"

	"duoclean/internal/model"
)

// SaveRun records one finished (or failed) cleanup run in the history
// table and returns its row ID.
func (db *DB) SaveRun(run model.Run) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		`INSERT INTO runs (started_at, dry_run, status, processed, deleted, errors, log_file, results_file, backup_file, duration, triggered_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		run.StartedAt, run.DryRun, run.Status, run.Processed, run.Deleted,
		run.Errors, run.LogFile, run.ResultsFile, run.BackupFile,
		run.Duration, run.TriggeredBy,
	).Scan(&id)
	return id, err
}

func (db *DB) GetRun(id int64) (*model.Run, error) {
	r := &model.Run{}
	var logFile, resultsFile, backupFile sql.NullString
	err := db.conn.QueryRow(
		`SELECT id, started_at, dry_run, status, processed, deleted, errors, log_file, results_file, backup_file, duration, triggered_by
		 FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.StartedAt, &r.DryRun, &r.Status, &r.Processed, &r.Deleted,
		&r.Errors, &logFile, &resultsFile, &backupFile, &r.Duration, &r.TriggeredBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.LogFile = logFile.String
	r.ResultsFile = resultsFile.String
	r.BackupFile = backupFile.String
	return r, nil
}

func (db *DB) ListRuns(limit int) ([]model.Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, dry_run, status, processed, deleted, errors, log_file, results_file, backup_file, duration, triggered_by
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var logFile, resultsFile, backupFile sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.DryRun, &r.Status, &r.Processed,
			&r.Deleted, &r.Errors, &logFile, &resultsFile, &backupFile,
			&r.Duration, &r.TriggeredBy); err != nil {
			return nil, err
		}
		r.LogFile = logFile.String
		r.ResultsFile = resultsFile.String
		r.BackupFile = backupFile.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunStats summarizes the history for the dashboard cards.
type RunStats struct {
	TotalRuns    int
	RecentRuns   int // last 30 days
	TotalDeleted int
	SuccessRate  float64
}

func (db *DB) GetRunStats() (RunStats, error) {
	var s RunStats
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&s.TotalRuns); err != nil {
		return s, err
	}
	cutoff := time.Now().AddDate(0, 0, -30)
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs WHERE started_at > $1", cutoff).Scan(&s.RecentRuns); err != nil {
		return s, err
	}
	if err := db.conn.QueryRow("SELECT COALESCE(SUM(deleted), 0) FROM runs WHERE status = 'completed'").Scan(&s.TotalDeleted); err != nil {
		return s, err
	}
	var completed int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs WHERE status = 'completed'").Scan(&completed); err != nil {
		return s, err
	}
	if s.TotalRuns > 0 {
		s.SuccessRate = float64(completed) / float64(s.TotalRuns) * 100
	}
	return s, nil
}
