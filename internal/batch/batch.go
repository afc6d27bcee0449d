// Package batch runs work in fixed-size concurrent chunks with a pause in between.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Run splits items into chunks of size, runs every item of a chunk
// concurrently and waits for the chunk to finish before pausing and starting
// the next one.
//
// Every item is handed to fn even if a sibling fails; the first error of each
// chunk is joined into the returned error. Cancelling ctx stops any further
// chunks from starting. The number of chunks that ran is always returned.
func Run[T any](ctx context.Context, items []T, size int, pause time.Duration, fn func(ctx context.Context, item T) error) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if size <= 0 {
		size = 1
	}

	var (
		chunks = lo.Chunk(items, size)
		errs   []error
		ran    int
	)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return ran, errors.Join(append(errs, err)...)
		}

		var g errgroup.Group
		for _, item := range chunk {
			g.Go(func() error {
				return fn(ctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
		ran++

		if i == len(chunks)-1 || pause <= 0 {
			continue
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ran, errors.Join(append(errs, ctx.Err())...)
		case <-timer.C:
		}
	}

	return ran, errors.Join(errs...)
}
