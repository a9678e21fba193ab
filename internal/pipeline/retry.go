package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/source"
)

// RetryController performs one item's fetch attempts
type RetryController struct {
	fetcher source.Fetcher
	config  model.RetryConfig
	logger  *slog.Logger
}

// NewRetryController creates a controller using cfg. MaxAttempts below 1 is treated as 1.
func NewRetryController(f source.Fetcher, cfg model.RetryConfig, logger *slog.Logger) *RetryController {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryController{fetcher: f, config: cfg, logger: logger}
}

// Config returns the effective retry configuration
func (rc *RetryController) Config() model.RetryConfig {
	return rc.config
}

// AttemptFetch fetches item with up to MaxAttempts attempts, each bounded by
// the attempt timeout, sleeping the backoff between attempts. It always
// returns an outcome; the bytes are nil unless the outcome succeeded.
func (rc *RetryController) AttemptFetch(ctx context.Context, item model.WorkItem) ([]byte, model.FetchOutcome) {
	start := time.Now()
	outcome := model.FetchOutcome{ID: item.ID}

	var lastErr error
	for attempt := 1; attempt <= rc.config.MaxAttempts; attempt++ {
		outcome.AttemptsUsed = attempt

		data, err := rc.fetcher.Fetch(ctx, item.SourceLocator, rc.config.Timeout)
		if err == nil {
			outcome.Success = true
			outcome.Bytes = int64(len(data))
			outcome.Seconds = time.Since(start).Seconds()
			return data, outcome
		}
		lastErr = err

		if !rc.shouldRetry(ctx, err) || attempt == rc.config.MaxAttempts {
			break
		}

		delay := rc.Delay(attempt)
		rc.logger.Debug("fetch attempt failed",
			"item", item.ID,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	outcome.Seconds = time.Since(start).Seconds()
	outcome.Error = rc.finalError(ctx, item.ID, outcome.AttemptsUsed, lastErr).Error()
	return nil, outcome
}

// Delay returns the backoff to wait after the given failed attempt.
// A multiplier of 1 keeps it fixed at InitialDelay.
func (rc *RetryController) Delay(attempt int) time.Duration {
	cfg := rc.config
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

func (rc *RetryController) shouldRetry(ctx context.Context, err error) bool {
	return ctx.Err() == nil && model.IsRetryable(err)
}

func (rc *RetryController) finalError(ctx context.Context, id, attempts int, err error) *model.PipelineError {
	code := model.CodePermanentFetch
	if ctx.Err() != nil || model.CodeOf(err) == model.CodeCancelled {
		code = model.CodeCancelled
	}
	pe := model.NewError(code, id, err)
	pe.Attempts = attempts
	return pe
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
