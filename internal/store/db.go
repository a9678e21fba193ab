package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-image-pipeline/internal/model"
)

var db *sql.DB

// ErrNotFound is returned when a batch does not exist
var ErrNotFound = errors.New("batch not found")

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	// one connection: sqlite serializes writers anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	tables := []string{`
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS batch_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT,
		code TEXT,
		error_message TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS stage_metrics (
		batch_id TEXT,
		stage TEXT,
		total INTEGER,
		succeeded INTEGER,
		failed INTEGER,
		elapsed_seconds REAL,
		throughput REAL,
		started_at DATETIME,
		finished_at DATETIME,
		PRIMARY KEY (batch_id, stage)
	);`, `
	CREATE TABLE IF NOT EXISTS item_failures (
		batch_id TEXT,
		stage TEXT,
		item_id INTEGER,
		error TEXT,
		created_at DATETIME,
		PRIMARY KEY (batch_id, stage, item_id)
	);`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the DB connection
func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// SaveBatch stores a new batch as pending
func SaveBatch(batchID string, spec model.BatchSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO batches (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		batchID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateBatchStatus updates batch status
func UpdateBatchStatus(batchID string, status string) error {
	now := time.Now().UTC()
	res, err := db.Exec(`UPDATE batches SET status = ?, updated_at = ? WHERE id = ?`, status, now, batchID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", batchID, ErrNotFound)
	}
	return nil
}

// SaveBatchError records a batch level error
func SaveBatchError(batchID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO batch_errors (batch_id, code, error_message, created_at) VALUES (?, ?, ?, ?)`,
		batchID, string(model.CodeOf(err)), err.Error(), now)
	return e
}

// SaveStageMetrics replaces the metrics and failed items of one stage
func SaveStageMetrics(batchID string, m model.BatchMetrics) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT OR REPLACE INTO stage_metrics
		(batch_id, stage, total, succeeded, failed, elapsed_seconds, throughput, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, m.Stage, m.TotalItems, m.Succeeded, m.Failed, m.ElapsedSeconds, m.ThroughputItemsPerSec,
		m.StartedAt.UTC(), nullTime(m.FinishedAt))
	if err != nil {
		return err
	}

	if _, err = tx.Exec(`DELETE FROM item_failures WHERE batch_id = ? AND stage = ?`, batchID, m.Stage); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range m.FailedIDs {
		if _, err = tx.Exec(`INSERT INTO item_failures (batch_id, stage, item_id, error, created_at) VALUES (?, ?, ?, ?, ?)`,
			batchID, m.Stage, id, m.Failures[id], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBatches returns all batches, newest first
func ListBatches() ([]model.BatchRecord, error) {
	rows, err := db.Query(`SELECT id, spec, status, created_at, updated_at FROM batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := []model.BatchRecord{}
	for rows.Next() {
		rec, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, rec)
	}
	return batches, rows.Err()
}

// GetBatch fetches full batch spec and status
func GetBatch(batchID string) (model.BatchRecord, error) {
	row := db.QueryRow(`SELECT id, spec, status, created_at, updated_at FROM batches WHERE id = ?`, batchID)
	rec, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("get %s: %w", batchID, ErrNotFound)
	}
	return rec, err
}

// GetStageMetrics returns the recorded stages of a batch in stage order
func GetStageMetrics(batchID string) ([]model.BatchMetrics, error) {
	rows, err := db.Query(`SELECT stage, total, succeeded, failed, elapsed_seconds, throughput, started_at, finished_at
		FROM stage_metrics WHERE batch_id = ?
		ORDER BY CASE stage WHEN ? THEN 0 ELSE 1 END`, batchID, model.StageFetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := []model.BatchMetrics{}
	for rows.Next() {
		var (
			m        model.BatchMetrics
			finished sql.NullTime
		)
		if err := rows.Scan(&m.Stage, &m.TotalItems, &m.Succeeded, &m.Failed,
			&m.ElapsedSeconds, &m.ThroughputItemsPerSec, &m.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			m.FinishedAt = &finished.Time
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range metrics {
		failures, err := GetFailures(batchID, metrics[i].Stage)
		if err != nil {
			return nil, err
		}
		metrics[i].FailedIDs = make([]int, 0, len(failures))
		metrics[i].Failures = make(map[int]string, len(failures))
		for _, f := range failures {
			metrics[i].FailedIDs = append(metrics[i].FailedIDs, f.ItemID)
			metrics[i].Failures[f.ItemID] = f.Error
		}
	}
	return metrics, nil
}

// GetFailures returns failed items of a batch ordered by stage and item.
// An empty stage returns the failures of every stage.
func GetFailures(batchID, stage string) ([]model.FailureRecord, error) {
	rows, err := db.Query(`SELECT batch_id, stage, item_id, error, created_at FROM item_failures
		WHERE batch_id = ? AND (? = '' OR stage = ?)
		ORDER BY CASE stage WHEN ? THEN 0 ELSE 1 END, item_id`,
		batchID, stage, stage, model.StageFetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := []model.FailureRecord{}
	for rows.Next() {
		var f model.FailureRecord
		if err := rows.Scan(&f.BatchID, &f.Stage, &f.ItemID, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// GetBatchErrors returns the batch level errors of a batch
func GetBatchErrors(batchID string) ([]model.ErrorDetail, error) {
	rows, err := db.Query(`SELECT batch_id, code, error_message, created_at FROM batch_errors WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.BatchID, &d.Code, &d.Message, &d.CreatedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (model.BatchRecord, error) {
	var (
		rec      model.BatchRecord
		specJSON string
	)
	if err := s.Scan(&rec.ID, &specJSON, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(specJSON), &rec.Spec); err != nil {
		return rec, fmt.Errorf("decode spec of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Reporter records batch progress in the ledger
type Reporter struct{}

func (Reporter) ReportStatus(_ context.Context, batchID, status string) error {
	return UpdateBatchStatus(batchID, status)
}

func (Reporter) ReportStage(_ context.Context, batchID string, m model.BatchMetrics) error {
	return SaveStageMetrics(batchID, m)
}

func (Reporter) ReportBatch(_ context.Context, report model.BatchReport) error {
	return UpdateBatchStatus(report.BatchID, report.Status)
}
