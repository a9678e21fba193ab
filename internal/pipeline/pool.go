package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBounded calls fn for every item with at most limit calls in flight and
// returns once all of them have returned. Submission blocks while the bound
// is reached.
//
// Once ctx is cancelled no further item is started; each remaining item is
// handed to skip together with the context error instead. fn must resolve its
// own failures, the pool never stops on them.
func RunBounded[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T), skip func(T, error)) {
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for _, rest := range items[i:] {
				skip(rest, err)
			}
			break
		}
		g.Go(func() error {
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// RunBoundedStream is RunBounded over a channel. It consumes in until it is
// closed, so producers never block on a cancelled consumer.
func RunBoundedStream[T any](ctx context.Context, limit int, in <-chan T, fn func(context.Context, T), skip func(T, error)) {
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for item := range in {
		if err := ctx.Err(); err != nil {
			skip(item, err)
			continue
		}
		g.Go(func() error {
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}
