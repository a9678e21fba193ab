package model

import (
	"log/slog"
	"time"
)

// Stage names used in metrics, logs and the ledger
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
)

// BatchMetrics is the aggregated result of one stage
type BatchMetrics struct {
	Stage                 string         `json:"stage"`
	TotalItems            int            `json:"total_items"`
	Succeeded             int            `json:"succeeded"`
	Failed                int            `json:"failed"`
	FailedIDs             []int          `json:"failed_ids"`
	Failures              map[int]string `json:"failures,omitempty"` // item id -> error text
	ElapsedSeconds        float64        `json:"elapsed_seconds"`
	ThroughputItemsPerSec float64        `json:"throughput_items_per_sec"`
	StartedAt             time.Time      `json:"started_at"`
	FinishedAt            *time.Time     `json:"finished_at,omitempty"`
}

// Recorded returns how many outcomes have been recorded so far
func (m BatchMetrics) Recorded() int {
	return m.Succeeded + m.Failed
}

// Complete reports whether every expected item has an outcome
func (m BatchMetrics) Complete() bool {
	return m.Recorded() == m.TotalItems
}

// AverageSeconds is the wall-clock time per item
func (m BatchMetrics) AverageSeconds() float64 {
	if m.TotalItems == 0 {
		return 0
	}
	return m.ElapsedSeconds / float64(m.TotalItems)
}

// LogValue implements slog.LogValuer for structured logging.
func (m BatchMetrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("stage", m.Stage),
		slog.Int("total", m.TotalItems),
		slog.Int("succeeded", m.Succeeded),
		slog.Int("failed", m.Failed),
		slog.Float64("elapsed_seconds", m.ElapsedSeconds),
		slog.Float64("items_per_sec", m.ThroughputItemsPerSec),
		slog.Any("failed_ids", m.FailedIDs),
	)
}

// Batch statuses
const (
	StatusPending      = "pending"
	StatusFetching     = "fetching"
	StatusTransforming = "transforming"
	StatusCompleted    = "completed"
	StatusCancelled    = "cancelled"
	StatusFailed       = "failed"
)

// BatchReport is the final result of a batch run
type BatchReport struct {
	BatchID        string       `json:"batch_id"`
	Status         string       `json:"status"`
	Mode           Mode         `json:"mode"`
	Fetch          BatchMetrics `json:"fetch"`
	Transform      BatchMetrics `json:"transform"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
}
