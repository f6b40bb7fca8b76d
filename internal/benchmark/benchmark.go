// Package benchmark measures the rectifier: a small suite runner for timed
// functions and a scaling benchmark over synthetic documents of increasing
// size and worker counts.
package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
)

// Result holds the result of a benchmark run.
type Result struct {
	Name         string             `json:"name"`
	Duration     time.Duration      `json:"duration_ns"`
	MemoryBefore common.MemoryStats `json:"memory_before"`
	MemoryAfter  common.MemoryStats `json:"memory_after"`
	Iterations   int                `json:"iterations"`
	Error        error              `json:"-"`
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the number of kilobytes allocated during the run.
func (r Result) AllocatedKB() uint64 {
	if r.MemoryAfter.TotalAlloc < r.MemoryBefore.TotalAlloc {
		return 0
	}
	return (r.MemoryAfter.TotalAlloc - r.MemoryBefore.TotalAlloc) / 1024
}

// String returns a formatted string representation of the benchmark result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average().Round(time.Microsecond),
		r.Duration.Round(time.Microsecond), r.AllocatedKB())
}

// Benchmark is a named function timed by a Suite.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite in the order they were added.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes the last results to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
	_, _ = fmt.Fprintln(w)
}

// runBenchmark stops at the first failing iteration; Iterations then counts
// the iterations that ran.
func runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	res := Result{Name: b.Name, MemoryBefore: common.GetMemoryStats()}

	timer := common.NewNamedTimer(b.Name)
	for range iterations {
		res.Iterations++
		if err := b.Func(); err != nil {
			res.Error = err
			break
		}
	}
	res.Duration = timer.Stop()
	res.MemoryAfter = common.GetMemoryStats()
	return res
}
