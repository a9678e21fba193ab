package pipeline

import (
	"context"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/storage"
)

// FetchStage downloads every work item with at most Workers fetches in flight
// and stores the raw bytes at the item's DestLocator.
type FetchStage struct {
	Retry   *RetryController
	Storage storage.Storage
	Workers int
	Logger  *slog.Logger
}

// Run fetches items and records one outcome per item into agg. Each item
// whose bytes were stored is sent on out, if out is not nil. Run does not
// close out.
func (s *FetchStage) Run(ctx context.Context, items []model.WorkItem, agg *Aggregator, out chan<- model.WorkItem) model.BatchMetrics {
	logger := s.logger()
	workers := s.Workers
	if workers < 1 {
		workers = model.DefaultIOWorkers
	}
	logger.Info("fetch stage started", "items", len(items), "io_workers", workers, "max_attempts", s.Retry.Config().MaxAttempts)

	agg.Start()
	RunBounded(ctx, workers, items, func(ctx context.Context, item model.WorkItem) {
		outcome := s.fetchOne(ctx, item)
		s.record(agg, outcome)
		if outcome.Success && out != nil {
			out <- item
		}
	}, func(item model.WorkItem, err error) {
		s.record(agg, model.FetchOutcome{
			ID:    item.ID,
			Error: model.NewError(model.CodeCancelled, item.ID, err).Error(),
		})
	})
	return agg.Finish()
}

func (s *FetchStage) fetchOne(ctx context.Context, item model.WorkItem) model.FetchOutcome {
	data, outcome := s.Retry.AttemptFetch(ctx, item)
	if !outcome.Success {
		return outcome
	}

	outcome.ContentType = mimetype.Detect(data).String()
	if err := s.Storage.Write(item.DestLocator, data); err != nil {
		outcome.Success = false
		outcome.Error = model.NewError(model.CodeStorage, item.ID, err).Error()
	}
	return outcome
}

func (s *FetchStage) record(agg *Aggregator, o model.FetchOutcome) {
	logger := s.logger()
	if err := agg.Record(o); err != nil {
		logger.Error("fetch outcome rejected", "item", o.ID, "error", err)
		return
	}
	if o.Success {
		logger.Debug("fetched", "item", o.ID, "bytes", o.Bytes, "attempts", o.AttemptsUsed, "content_type", o.ContentType)
		return
	}
	logger.Warn("fetch failed", "item", o.ID, "attempts", o.AttemptsUsed, "error", o.Error)
}

func (s *FetchStage) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
