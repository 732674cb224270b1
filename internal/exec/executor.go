// Package exec runs per-chunk work on a bounded number of goroutines.
package exec

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"scorekit/domain/core"
	"scorekit/ports"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ParallelExecutor fans chunks out across goroutines, holding at most
// parallelism of them in flight through a weighted semaphore.
type ParallelExecutor struct {
	parallelism int64
	sem         *semaphore.Weighted
}

var _ ports.ChunkExecutor = (*ParallelExecutor)(nil)

// NewParallelExecutor creates an executor; parallelism <= 0 means GOMAXPROCS.
func NewParallelExecutor(parallelism int) *ParallelExecutor {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &ParallelExecutor{
		parallelism: int64(parallelism),
		sem:         semaphore.NewWeighted(int64(parallelism)),
	}
}

// Parallelism returns the configured bound
func (e *ParallelExecutor) Parallelism() int {
	return int(e.parallelism)
}

// DoAll calls fn for every chunk index in [0, nChunks). It returns after all
// started invocations returned. The first failure cancels the context passed
// to the others; a cancelled parent context yields core.ErrScoringCancelled.
func (e *ParallelExecutor) DoAll(ctx context.Context, nChunks int, fn ports.ChunkFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < nChunks; i++ {
		if err := e.sem.Acquire(gctx, 1); err != nil {
			break
		}
		chunk := i
		g.Go(func() error {
			defer e.sem.Release(1)
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, chunk); err != nil {
				return fmt.Errorf("chunk %d: %w", chunk, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", core.ErrScoringCancelled, ctx.Err())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrScoringCancelled, err)
	}
	return err
}

// SerialExecutor runs chunks one after another on the calling goroutine.
type SerialExecutor struct{}

var _ ports.ChunkExecutor = SerialExecutor{}

func (SerialExecutor) DoAll(ctx context.Context, nChunks int, fn ports.ChunkFunc) error {
	for i := 0; i < nChunks; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", core.ErrScoringCancelled, err)
		}
		if err := fn(ctx, i); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}
