// Package batch provides a generic concurrent executor for remote-API work:
// bounded workers, bounded retries with exponential backoff, automatic
// bisection of oversized batches, and serialized progress checkpoints so an
// interrupted run can resume from durable partial state.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/starorg-cli/internal/core/domain"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// Class buckets a unit-of-work failure into the pool's handling policy.
type Class int

const (
	// ClassTerminal failures are reported per item without further retries.
	ClassTerminal Class = iota

	// ClassTransient failures are retried with exponential backoff up to
	// MaxRetries, then reported as terminal.
	ClassTransient

	// ClassThrottled failures are retried without consuming the retry
	// budget; pacing is the rate limiter's job inside the work function.
	ClassThrottled

	// ClassSplittable failures bisect the batch instead of retrying it in
	// the same shape, isolating the offending subset.
	ClassSplittable
)

// Classifier maps a batch-level error to its handling class.
type Classifier func(error) Class

// DefaultClassifier classifies through the domain error taxonomy.
func DefaultClassifier(err error) Class {
	switch {
	case domain.IsSplittable(err):
		return ClassSplittable
	case domain.IsThrottled(err):
		return ClassThrottled
	case domain.IsTransient(err):
		return ClassTransient
	default:
		return ClassTerminal
	}
}

// Default tuning values.
const (
	DefaultWorkers    = 8
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
)

// Job describes one batch run.
type Job[T any, K comparable, R any] struct {
	// Items is the ordered work collection. Output is keyed by Key, not by
	// position; completion order is unspecified.
	Items []T

	// Key derives the stable identity of an item.
	Key func(T) K

	// Work processes one batch. It returns per-key results and per-key
	// failures for items it could account for individually, and a
	// batch-level error when the call failed as a whole.
	Work func(ctx context.Context, items []T) (map[K]R, map[K]error, error)

	// Workers bounds concurrency (default 8).
	Workers int

	// BatchSize is the initial batch size (default 1: per-item work).
	BatchSize int

	// MinBatch is the bisection floor (default 1). A batch at or below this
	// size fails terminally instead of splitting further.
	MinBatch int

	// MaxRetries bounds transient retries per batch (default 3).
	MaxRetries int

	// Backoff is the initial retry delay, doubled per attempt (default 1s).
	Backoff time.Duration

	// CheckpointEvery invokes Checkpoint after every N successes, in
	// completion order. Zero disables intermediate checkpoints.
	CheckpointEvery int

	// Checkpoint receives the full partial result set so far. Calls are
	// serialized: one checkpoint write at a time. A failing checkpoint is
	// logged and does not stop the run.
	Checkpoint func(done map[K]R) error

	// Classify overrides DefaultClassifier when set.
	Classify Classifier
}

// Results holds the per-item outcome of a run. Every input item appears in
// exactly one of OK or Failed; nothing is silently dropped.
type Results[K comparable, R any] struct {
	OK     map[K]R
	Failed map[K]error
}

// unit is a batch on the work stack with its consumed retry budget.
type unit[T any] struct {
	items   []T
	retries int
}

// progress is the shared completion tracker. A single mutex serializes both
// result recording and checkpoint writes.
type progress[K comparable, R any] struct {
	mu              sync.Mutex
	ok              map[K]R
	failed          map[K]error
	sinceCheckpoint int
}

// Run executes the job and returns per-item outcomes. It never returns an
// error itself: batch-level failures are attributed to the items they cover.
func Run[T any, K comparable, R any](ctx context.Context, job Job[T, K, R]) Results[K, R] {
	if job.Workers <= 0 {
		job.Workers = DefaultWorkers
	}
	if job.BatchSize <= 0 {
		job.BatchSize = 1
	}
	if job.MinBatch <= 0 {
		job.MinBatch = 1
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = DefaultMaxRetries
	}
	if job.Backoff <= 0 {
		job.Backoff = DefaultBackoff
	}
	if job.Classify == nil {
		job.Classify = DefaultClassifier
	}

	prog := &progress[K, R]{
		ok:     make(map[K]R, len(job.Items)),
		failed: make(map[K]error),
	}

	batches := chunk(job.Items, job.BatchSize)
	work := make(chan []T)

	workers := job.Workers
	if workers > len(batches) && len(batches) > 0 {
		workers = len(batches)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range work {
				runBatch(ctx, job, prog, batch)
			}
		}()
	}

	for _, b := range batches {
		work <- b
	}
	close(work)
	wg.Wait()

	// Final checkpoint covers successes recorded after the last cadence
	// boundary, so an uninterrupted run always persists its full output.
	prog.mu.Lock()
	if job.Checkpoint != nil && prog.sinceCheckpoint > 0 {
		if err := job.Checkpoint(prog.ok); err != nil {
			logger.Warn("final checkpoint failed: %v", err)
		}
		prog.sinceCheckpoint = 0
	}
	prog.mu.Unlock()

	return Results[K, R]{OK: prog.ok, Failed: prog.failed}
}

// runBatch drives one top-level batch to completion, bisecting through an
// explicit work stack so splitting never grows the goroutine count or the
// call stack.
func runBatch[T any, K comparable, R any](
	ctx context.Context,
	job Job[T, K, R],
	prog *progress[K, R],
	batch []T,
) {
	stack := []unit[T]{{items: batch}}

	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if ctx.Err() != nil {
			failAll(job, prog, u.items, ctx.Err())
			continue
		}

		ok, failed, err := job.Work(ctx, u.items)
		if err == nil {
			record(job, prog, u.items, ok, failed)
			continue
		}

		switch job.Classify(err) {
		case ClassSplittable:
			if len(u.items) > job.MinBatch && len(u.items) > 1 {
				mid := len(u.items) / 2
				stack = append(stack,
					unit[T]{items: u.items[mid:], retries: u.retries},
					unit[T]{items: u.items[:mid], retries: u.retries},
				)
				continue
			}
			failAll(job, prog, u.items, err)

		case ClassThrottled:
			// Expected, not exceptional: re-queue without touching the
			// retry budget. Pacing comes from the limiter inside Work; the
			// only bound here is the context.
			stack = append(stack, u)

		case ClassTransient:
			if u.retries < job.MaxRetries {
				if !sleep(ctx, job.Backoff<<u.retries) {
					failAll(job, prog, u.items, ctx.Err())
					continue
				}
				u.retries++
				stack = append(stack, u)
				continue
			}
			failAll(job, prog, u.items, err)

		default:
			failAll(job, prog, u.items, err)
		}
	}
}

// record books per-item outcomes from a completed work call and fires the
// checkpoint cadence.
func record[T any, K comparable, R any](
	job Job[T, K, R],
	prog *progress[K, R],
	items []T,
	ok map[K]R,
	failed map[K]error,
) {
	prog.mu.Lock()
	defer prog.mu.Unlock()

	for _, item := range items {
		key := job.Key(item)
		if r, found := ok[key]; found {
			prog.ok[key] = r
			prog.sinceCheckpoint++
			continue
		}
		if err, found := failed[key]; found {
			prog.failed[key] = err
			continue
		}
		// A work function accounting for every item is the contract; an
		// unaccounted item must still surface rather than vanish.
		prog.failed[key] = fmt.Errorf("%w: no result for item", domain.ErrValidation)
	}

	if job.Checkpoint != nil && job.CheckpointEvery > 0 && prog.sinceCheckpoint >= job.CheckpointEvery {
		if err := job.Checkpoint(prog.ok); err != nil {
			logger.Warn("checkpoint failed: %v", err)
		}
		prog.sinceCheckpoint = 0
	}
}

// failAll marks every item of a batch as terminally failed.
func failAll[T any, K comparable, R any](job Job[T, K, R], prog *progress[K, R], items []T, err error) {
	prog.mu.Lock()
	defer prog.mu.Unlock()
	for _, item := range items {
		prog.failed[job.Key(item)] = err
	}
}

// sleep waits d or until ctx is cancelled; reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// chunk splits items into slices of at most size.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
