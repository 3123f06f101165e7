package mq

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ProcessEach runs fn for every item with at most limit in flight.
// Results and errors are index-aligned with items. A panic in fn becomes
// that item's error; other items are unaffected.
func ProcessEach[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range items {
		i := i
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[i], errs[i] = fn(ctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}
