package common

import (
	"fmt"
	"runtime"
	"time"
)

// MemoryStats is a snapshot of the Go heap.
type MemoryStats struct {
	Alloc         uint64  `json:"alloc_bytes"`
	TotalAlloc    uint64  `json:"total_alloc_bytes"`
	Sys           uint64  `json:"sys_bytes"`
	HeapInuse     uint64  `json:"heap_inuse_bytes"`
	NumGC         uint32  `json:"num_gc"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		HeapInuse:     m.HeapInuse,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024,
		m.TotalAlloc/1024,
		m.Sys/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// RunStats summarises a run over a number of items.
type RunStats struct {
	Name         string        `json:"name"`
	Items        int           `json:"items"`
	Failed       int           `json:"failed"`
	Workers      int           `json:"workers"`
	Duration     time.Duration `json:"duration_ns"`
	MemoryBefore MemoryStats   `json:"memory_before"`
	MemoryAfter  MemoryStats   `json:"memory_after"`
}

// AllocatedKB is the number of kilobytes allocated during the run.
func (s RunStats) AllocatedKB() uint64 {
	if s.MemoryAfter.TotalAlloc < s.MemoryBefore.TotalAlloc {
		return 0
	}
	return (s.MemoryAfter.TotalAlloc - s.MemoryBefore.TotalAlloc) / 1024
}

// Throughput returns successfully processed items per second.
func (s RunStats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Items-s.Failed) / s.Duration.Seconds()
}

// String returns a formatted string representation of the run.
func (s RunStats) String() string {
	avg := time.Duration(0)
	if s.Items > 0 {
		avg = s.Duration / time.Duration(s.Items)
	}
	return fmt.Sprintf("%s: %d items (%d failed), %d workers, avg: %v, total: %v, alloc: %d KB",
		s.Name, s.Items, s.Failed, s.Workers, avg.Round(time.Microsecond),
		s.Duration.Round(time.Microsecond), s.AllocatedKB())
}
