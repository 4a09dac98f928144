package decoder

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch calls fn for every item with at most workers calls in flight. Each
// call should run its own session; sessions never share a source. The
// context is checked between items, not during a decode. The first error
// cancels the items not yet started and is returned.
func Batch(ctx context.Context, items []string, workers int, fn func(ctx context.Context, i int, item string) error) error {
	if workers < 1 {
		workers = 1
	}
	parent := ctx
	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(workers)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, item)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return parent.Err()
}
