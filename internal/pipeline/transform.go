package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/storage"
)

// Processor turns one raw image into its transformed encoding
type Processor interface {
	Process(ctx context.Context, r io.Reader, w io.Writer, outputName string) error
}

// TransformStage runs the processor on fetched items with at most
// model.MaxCPUWorkers transforms in flight.
type TransformStage struct {
	Processor Processor
	Storage   storage.Storage
	Workers   int
	Timeout   time.Duration // per item, zero means none
	Logger    *slog.Logger
}

// workers returns the effective bound after clamping
func (s *TransformStage) workers() int {
	n := model.ClampCPU(s.Workers)
	if s.Workers > model.MaxCPUWorkers {
		s.logger().Warn("cpu_workers exceeds the hard ceiling, clamped", "requested", s.Workers, "effective", n)
	}
	return n
}

// Run transforms items and records one outcome per item into agg
func (s *TransformStage) Run(ctx context.Context, items []model.WorkItem, agg *Aggregator) model.BatchMetrics {
	workers := s.workers()
	s.logger().Info("transform stage started", "items", len(items), "cpu_workers", workers)

	agg.Start()
	RunBounded(ctx, workers, items, func(ctx context.Context, item model.WorkItem) {
		s.record(agg, s.transformOne(ctx, item))
	}, func(item model.WorkItem, err error) {
		s.record(agg, s.skipped(item, err))
	})
	return agg.Finish()
}

// RunStream transforms items as they arrive on in until it is closed. Every
// received item is added to agg's expected set before it is processed.
func (s *TransformStage) RunStream(ctx context.Context, in <-chan model.WorkItem, agg *Aggregator) model.BatchMetrics {
	workers := s.workers()
	s.logger().Info("transform stage started", "cpu_workers", workers, "streaming", true)

	agg.Start()
	expecting := make(chan model.WorkItem)
	go func() {
		defer close(expecting)
		for item := range in {
			agg.Expect(item.ID)
			expecting <- item
		}
	}()
	RunBoundedStream(ctx, workers, expecting, func(ctx context.Context, item model.WorkItem) {
		s.record(agg, s.transformOne(ctx, item))
	}, func(item model.WorkItem, err error) {
		s.record(agg, s.skipped(item, err))
	})
	return agg.Finish()
}

func (s *TransformStage) transformOne(ctx context.Context, item model.WorkItem) model.TransformOutcome {
	start := time.Now()
	err := s.process(ctx, item)
	outcome := model.TransformOutcome{
		ID:      item.ID,
		Success: err == nil,
		Seconds: time.Since(start).Seconds(),
	}
	if err != nil {
		code := model.CodeTransform
		if ctx.Err() != nil {
			code = model.CodeCancelled
		}
		outcome.Error = model.NewError(code, item.ID, err).Error()
	}
	return outcome
}

// process owns both file handles for the duration of the call. Neither
// handle outlives it, whatever the processor does.
func (s *TransformStage) process(ctx context.Context, item model.WorkItem) (err error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	in, err := s.Storage.Open(item.DestLocator)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.Storage.Create(item.OutputLocator)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
		if err != nil {
			// a partial output must not look like a result
			if rmErr := s.Storage.Remove(item.OutputLocator); rmErr != nil {
				s.logger().Debug("remove partial output", "item", item.ID, "error", rmErr)
			}
		}
	}()

	return s.runProcessor(ctx, in, out, item.OutputLocator)
}

// runProcessor converts a panic in the processor into an error
func (s *TransformStage) runProcessor(ctx context.Context, r io.Reader, w io.Writer, name string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.Processor.Process(ctx, r, w, name)
}

func (s *TransformStage) skipped(item model.WorkItem, err error) model.TransformOutcome {
	return model.TransformOutcome{
		ID:    item.ID,
		Error: model.NewError(model.CodeCancelled, item.ID, err).Error(),
	}
}

func (s *TransformStage) record(agg *Aggregator, o model.TransformOutcome) {
	logger := s.logger()
	if err := agg.Record(o); err != nil {
		logger.Error("transform outcome rejected", "item", o.ID, "error", err)
		return
	}
	if !o.Success {
		logger.Warn("transform failed", "item", o.ID, "error", o.Error)
	}
}

func (s *TransformStage) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
