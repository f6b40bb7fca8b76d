// Package parallel runs data-parallel kernels over image rows.
//
// Rows are split into contiguous bands, one goroutine per band. Every call
// returns only after all bands have finished, and the number of processed
// rows is checked against the requested range before returning: a short
// count is reported as ErrIncomplete and must abort the caller's run.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrIncomplete is returned when a bulk stage did not process every row.
	ErrIncomplete = errors.New("parallel: stage did not process every row")
	// ErrWorkerPanic is returned when a worker panicked.
	ErrWorkerPanic = errors.New("parallel: worker panicked")
)

// Band is a half-open range of rows [Start, End) owned by one worker.
type Band struct {
	Index int
	Start int
	End   int
}

// Len returns the number of rows in the band.
func (b Band) Len() int { return b.End - b.Start }

// Workers resolves a configured worker count (0 or negative = runtime.NumCPU()).
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Plan splits [lo, hi) into at most workers contiguous bands of near-equal size.
func Plan(lo, hi, workers int) []Band {
	n := hi - lo
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	bands := make([]Band, 0, workers)
	size, rem := n/workers, n%workers
	start := lo
	for i := range workers {
		end := start + size
		if i < rem {
			end++
		}
		bands = append(bands, Band{Index: i, Start: start, End: end})
		start = end
	}
	return bands
}

// ForBands runs fn once per band concurrently and joins. fn must only write
// to memory derived from its own band (or band index).
func ForBands(bands []Band, fn func(b Band)) error {
	want := 0
	for _, b := range bands {
		want += b.Len()
	}

	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		errMu    sync.Mutex
		firstErr error
	)
	for _, b := range bands {
		wg.Add(1)
		go func(b Band) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("%w: band %d [%d,%d): %v", ErrWorkerPanic, b.Index, b.Start, b.End, r)
					}
					errMu.Unlock()
				}
			}()
			fn(b)
			done.Add(int64(b.Len()))
		}(b)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if got := done.Load(); got != int64(want) {
		return fmt.Errorf("%w: %d of %d rows", ErrIncomplete, got, want)
	}
	return nil
}

// ForRange calls fn(y) for every y in [lo, hi) using up to workers goroutines.
func ForRange(lo, hi, workers int, fn func(y int)) error {
	return ForBands(Plan(lo, hi, workers), func(b Band) {
		for y := b.Start; y < b.End; y++ {
			fn(y)
		}
	})
}

// ForRows calls fn(y) for every y in [0, rows).
func ForRows(rows, workers int, fn func(y int)) error {
	return ForRange(0, rows, workers, fn)
}
