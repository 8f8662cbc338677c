package scope

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

// FileResult carries the outcome of processing one file during a fan-out.
type FileResult[T any] struct {
	Path  string
	Value T
	Err   error
}

// ForEachFile processes files concurrently with at most limit workers in
// flight. It returns the results that completed before ctx expired; work
// still in flight when the deadline fires is abandoned. Per-file errors are
// recorded on the result, not returned, so one bad file never sinks a
// project operation.
func ForEachFile[T any](ctx context.Context, files []string, limit int64, fn func(ctx context.Context, path string) (T, error)) []FileResult[T] {
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu      sync.Mutex
		results []FileResult[T]
		wg      sync.WaitGroup
	)
	for _, path := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // deadline hit, remaining files are discarded
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)
			value, err := fn(ctx, path)
			mu.Lock()
			results = append(results, FileResult[T]{Path: path, Value: value, Err: err})
			mu.Unlock()
		}(path)
	}
	wg.Wait()
	return results
}

// WithTimeout runs fn under the operation class's time budget and races
// completion against the deadline. When the deadline wins the in-flight
// result is discarded and a typed timeout error is returned.
func WithTimeout[T any](ctx context.Context, operation string, budget time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value, err}
	}()
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, scaerr.NewTimeout(operation, budget)
	}
}
