// Package pipeline runs a batch: it enumerates the numbered items, fetches
// them through a bounded pool with per-item retries and transforms the
// fetched images through a second pool whose bound never exceeds
// model.MaxCPUWorkers.
//
// Every item resolves to exactly one outcome per stage it reaches. Item
// failures never stop the batch; Run only returns an error when the batch
// cannot start at all.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/imaging"
	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/source"
	"go-image-pipeline/internal/storage"
)

// Deps are the collaborators of a batch. Nil fields get a default.
type Deps struct {
	Fetcher   source.Fetcher
	Storage   storage.Storage
	Processor Processor
	Reporter  Reporter
	Logger    *slog.Logger
}

func (d Deps) withDefaults(spec model.BatchSpec) Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Fetcher == nil {
		d.Fetcher = source.NewHTTPFetcher(spec.Workers.IO)
	}
	if d.Storage == nil {
		d.Storage = storage.NewOS(".")
	}
	if d.Processor == nil {
		d.Processor = imaging.NewProcessor(imaging.Settings{
			BlurRadius:       spec.Transform.BlurRadius,
			SecondBlurRadius: spec.Transform.SecondBlurRadius,
			ContrastFactor:   spec.Transform.ContrastFactor,
			UpscaleFactor:    spec.Transform.UpscaleFactor,
			Quality:          spec.Transform.Quality,
			Optimize:         spec.Transform.Optimize,
		})
	}
	if d.Reporter == nil {
		d.Reporter = LogReporter{Logger: d.Logger}
	}
	return d
}

// Run executes one batch described by spec.
//
// Cancelling ctx stops admission of new work; items that never started are
// recorded as cancelled failures and the report status is
// model.StatusCancelled. The returned error is non-nil only for invalid
// configuration or when the output directories cannot be prepared.
func Run(ctx context.Context, batchID string, spec model.BatchSpec, deps Deps) (report model.BatchReport, err error) {
	start := time.Now()
	warnings := config.Normalize(&spec)
	deps = deps.withDefaults(spec)
	logger := deps.Logger.With("batch", batchID)

	report = model.BatchReport{BatchID: batchID, Status: model.StatusPending, Mode: spec.Mode}
	defer func() {
		report.ElapsedSeconds = time.Since(start).Seconds()
		if err != nil {
			report.Status = model.StatusFailed
		}
		// the batch context may already be cancelled, reporting must still reach the sinks
		rctx := context.WithoutCancel(ctx)
		if rerr := deps.Reporter.ReportBatch(rctx, report); rerr != nil {
			logger.Error("report batch", "error", rerr)
		}
	}()

	for _, w := range warnings {
		logger.Warn(w)
	}
	if err := config.Validate(spec); err != nil {
		return report, model.NewError(model.CodeInvalidConfig, 0, err)
	}

	items, err := Enumerate(spec)
	if err != nil {
		return report, model.NewError(model.CodeInvalidConfig, 0, err)
	}
	if err := errors.Join(
		deps.Storage.MkdirAll(spec.Output.RawDir),
		deps.Storage.MkdirAll(spec.Output.ProcessedDir),
	); err != nil {
		return report, model.NewError(model.CodeStorage, 0, fmt.Errorf("prepare output: %w", err))
	}

	fetch := &FetchStage{
		Retry:   NewRetryController(deps.Fetcher, config.RetryPolicy(spec), logger),
		Storage: deps.Storage,
		Workers: spec.Workers.IO,
		Logger:  logger.With("stage", model.StageFetch),
	}
	transform := &TransformStage{
		Processor: deps.Processor,
		Storage:   deps.Storage,
		Workers:   spec.Workers.CPU,
		Timeout:   config.TransformTimeout(spec),
		Logger:    logger.With("stage", model.StageTransform),
	}

	fetchAgg := NewAggregator(model.StageFetch, itemIDs(items))
	fetchAgg.OnProgress(spec.ReportInterval, progressLogger(logger, model.StageFetch))

	logger.Info("batch started", "items", len(items), "mode", spec.Mode)
	r := runner{batchID: batchID, reporter: deps.Reporter, logger: logger}

	switch spec.Mode {
	case model.ModePipelined:
		report.Fetch, report.Transform = r.pipelined(ctx, spec, items, fetch, fetchAgg, transform)
	default:
		report.Fetch, report.Transform = r.sequential(ctx, spec, items, fetch, fetchAgg, transform)
	}

	report.Status = model.StatusCompleted
	if ctx.Err() != nil {
		report.Status = model.StatusCancelled
	}
	r.status(ctx, report.Status)
	return report, nil
}

type runner struct {
	batchID  string
	reporter Reporter
	logger   *slog.Logger
}

// sequential fetches every item before the first transform starts
func (r runner) sequential(ctx context.Context, spec model.BatchSpec, items []model.WorkItem,
	fetch *FetchStage, fetchAgg *Aggregator, transform *TransformStage,
) (model.BatchMetrics, model.BatchMetrics) {
	r.status(ctx, model.StatusFetching)
	fetched := make(chan model.WorkItem, len(items))
	fetchMetrics := fetch.Run(ctx, items, fetchAgg, fetched)
	close(fetched)
	r.stage(ctx, fetchMetrics)

	var ready []model.WorkItem
	for item := range fetched {
		ready = append(ready, item)
	}
	slices.SortFunc(ready, func(a, b model.WorkItem) int { return a.ID - b.ID })

	r.status(ctx, model.StatusTransforming)
	transformAgg := NewAggregator(model.StageTransform, itemIDs(ready))
	transformAgg.OnProgress(spec.ReportInterval, progressLogger(r.logger, model.StageTransform))
	transformMetrics := transform.Run(ctx, ready, transformAgg)
	r.stage(ctx, transformMetrics)

	return fetchMetrics, transformMetrics
}

// pipelined starts an item's transform as soon as its fetch succeeded
func (r runner) pipelined(ctx context.Context, spec model.BatchSpec, items []model.WorkItem,
	fetch *FetchStage, fetchAgg *Aggregator, transform *TransformStage,
) (model.BatchMetrics, model.BatchMetrics) {
	r.status(ctx, model.StatusFetching)
	fetched := make(chan model.WorkItem, model.ClampCPU(spec.Workers.CPU))
	fetchDone := make(chan model.BatchMetrics, 1)
	go func() {
		defer close(fetched)
		m := fetch.Run(ctx, items, fetchAgg, fetched)
		r.stage(ctx, m)
		r.status(ctx, model.StatusTransforming)
		fetchDone <- m
	}()

	transformAgg := NewAggregator(model.StageTransform, nil)
	transformAgg.OnProgress(spec.ReportInterval, progressLogger(r.logger, model.StageTransform))
	transformMetrics := transform.RunStream(ctx, fetched, transformAgg)
	fetchMetrics := <-fetchDone
	r.stage(ctx, transformMetrics)

	return fetchMetrics, transformMetrics
}

func (r runner) status(ctx context.Context, status string) {
	if err := r.reporter.ReportStatus(context.WithoutCancel(ctx), r.batchID, status); err != nil {
		r.logger.Error("report status", "status", status, "error", err)
	}
}

func (r runner) stage(ctx context.Context, m model.BatchMetrics) {
	if !m.Complete() {
		r.logger.Error("stage outcomes missing", "stage", m.Stage, "recorded", m.Recorded(), "total", m.TotalItems)
	}
	if err := r.reporter.ReportStage(context.WithoutCancel(ctx), r.batchID, m); err != nil {
		r.logger.Error("report stage", "stage", m.Stage, "error", err)
	}
}
