package work

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/moodcheck/internal/logging"
)

// Result is the outcome for one element of a Map.
type Result[R any] struct {
	Value R
	Err   error
}

// Map applies fn to every item using at most workers goroutines. The
// returned slice is in input order. An error (or panic) in fn affects only
// that element's Result; the batch always runs to completion. Once ctx is
// done, remaining items are not started and carry ctx.Err().
func Map[T, R any](ctx context.Context, typ Type, items []T, workers int, fn func(context.Context, T) (R, error)) ([]Result[R], Stats) {
	start := time.Now()
	workers = Workers(workers)
	results := make([]Result[R], len(items))

	logging.Debug("Batch started", "type", typ, "items", len(items), "workers", workers)

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result[R]{Err: err}
				return nil
			}
			results[i] = run(ctx, typ, i, item, fn)
			return nil // never fail the group - errors reported per element
		})
	}
	_ = g.Wait()

	stats := Stats{Type: typ, Total: len(items), Workers: workers, Duration: time.Since(start)}
	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
		} else {
			stats.Completed++
		}
	}
	logStats(stats)
	return results, stats
}

// run executes fn for one element, converting a panic into an error.
func run[T, R any](ctx context.Context, typ Type, i int, item T, fn func(context.Context, T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Work panicked", "type", typ, "index", i, "panic", r)
			res = Result[R]{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	v, err := fn(ctx, item)
	if err != nil {
		logging.Debug("Work failed", "type", typ, "index", i, "error", err)
	}
	return Result[R]{Value: v, Err: err}
}

// Chunks splits items into at most n contiguous, non-empty slices.
func Chunks[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	if len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	size := (len(items) + n - 1) / n
	out := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// Reduce folds chunks of items in parallel and merges the partial
// accumulators with combine. combine must be associative and commutative
// with zero as identity: partials are merged in completion order. An error
// from fold aborts the whole pass.
func Reduce[T, A any](ctx context.Context, typ Type, items []T, workers int, zero A, fold func(acc A, offset int, chunk []T) (A, error), combine func(a, b A) A) (A, error) {
	start := time.Now()
	workers = Workers(workers)
	chunks := Chunks(items, workers)

	partials := make(chan A, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	offset := 0
	for _, chunk := range chunks {
		off := offset
		offset += len(chunk)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			acc, err := fold(zero, off, chunk)
			if err != nil {
				return err
			}
			partials <- acc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Error("Reduce aborted", "type", typ, "error", err)
		return zero, err
	}
	close(partials)

	total := zero
	for p := range partials {
		total = combine(total, p)
	}

	logStats(Stats{Type: typ, Total: len(items), Completed: len(items), Workers: workers, Duration: time.Since(start)})
	return total, nil
}
