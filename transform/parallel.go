package transform

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MapOrdered applies fn to every item using at most workers goroutines and
// returns the results in input order. Each result is written into its input
// index slot, so parallel execution is byte-for-byte equivalent to the
// sequential path. workers <= 1 runs inline.
func MapOrdered[T any, R any](ctx context.Context, workers int, items []T, fn func(int, T) R) []R {
	out := make([]R, len(items))
	if workers <= 1 || len(items) < 2 {
		for i := range items {
			out[i] = fn(i, items[i])
		}
		return out
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		i := i
		g.Go(func() error {
			out[i] = fn(i, items[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; results are values
	return out
}
