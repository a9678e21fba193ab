package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go-image-pipeline/internal/model"
)

// Reporter receives batch progress for operator visibility. Reporter errors
// are logged and never change a batch result.
type Reporter interface {
	ReportStatus(ctx context.Context, batchID, status string) error
	ReportStage(ctx context.Context, batchID string, m model.BatchMetrics) error
	ReportBatch(ctx context.Context, report model.BatchReport) error
}

// Reporters fans every call out to each reporter in order
type Reporters []Reporter

func (rs Reporters) ReportStatus(ctx context.Context, batchID, status string) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.ReportStatus(ctx, batchID, status))
	}
	return errors.Join(errs...)
}

func (rs Reporters) ReportStage(ctx context.Context, batchID string, m model.BatchMetrics) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.ReportStage(ctx, batchID, m))
	}
	return errors.Join(errs...)
}

func (rs Reporters) ReportBatch(ctx context.Context, report model.BatchReport) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.ReportBatch(ctx, report))
	}
	return errors.Join(errs...)
}

// LogReporter writes stage and batch summaries to a slog logger
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) ReportStatus(ctx context.Context, batchID, status string) error {
	r.Logger.DebugContext(ctx, "batch status", "batch", batchID, "status", status)
	return nil
}

func (r LogReporter) ReportStage(ctx context.Context, batchID string, m model.BatchMetrics) error {
	r.Logger.InfoContext(ctx, "stage complete",
		"batch", batchID,
		"metrics", m,
		"avg_seconds_per_item", m.AverageSeconds(),
	)
	return nil
}

func (r LogReporter) ReportBatch(ctx context.Context, report model.BatchReport) error {
	r.Logger.InfoContext(ctx, "batch finished",
		"batch", report.BatchID,
		"status", report.Status,
		"mode", report.Mode,
		"fetched", fmt.Sprintf("%d/%d", report.Fetch.Succeeded, report.Fetch.TotalItems),
		"transformed", fmt.Sprintf("%d/%d", report.Transform.Succeeded, report.Transform.TotalItems),
		"elapsed_seconds", report.ElapsedSeconds,
	)
	return nil
}

// progressLogger logs a line every time the aggregator reports progress
func progressLogger(logger *slog.Logger, stage string) ProgressFunc {
	return func(m model.BatchMetrics) {
		logger.Info("progress",
			"stage", stage,
			"done", fmt.Sprintf("%d/%d", m.Recorded(), m.TotalItems),
			"failed", m.Failed,
			"items_per_sec", m.ThroughputItemsPerSec,
		)
	}
}

// WriteSummary prints the human readable end of run summary
func WriteSummary(w io.Writer, report model.BatchReport) error {
	for _, s := range []struct {
		title string
		m     model.BatchMetrics
	}{
		{"Download", report.Fetch},
		{"Processing", report.Transform},
	} {
		if _, err := fmt.Fprintf(w,
			"%s summary\n  duration: %.2fs\n  succeeded: %d/%d\n  failed: %d\n  speed: %.2f img/s\n  average: %.3f s/img\n",
			s.title, s.m.ElapsedSeconds, s.m.Succeeded, s.m.TotalItems, s.m.Failed,
			s.m.ThroughputItemsPerSec, s.m.AverageSeconds(),
		); err != nil {
			return err
		}
		if len(s.m.FailedIDs) > 0 {
			if _, err := fmt.Fprintf(w, "  failed items: %v\n", s.m.FailedIDs); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w,
		"Time summary\n  download: %.2fs\n  processing: %.2fs\n  total: %.2fs\n  status: %s\n",
		report.Fetch.ElapsedSeconds, report.Transform.ElapsedSeconds, report.ElapsedSeconds, report.Status,
	)
	return err
}
