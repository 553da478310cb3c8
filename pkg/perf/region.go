// Package perf provides CPU profiling around the measured part of a run
// and memory snapshots for benchmarks.
package perf

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// ErrActive is returned by Enter when the region is already profiling.
var ErrActive = errors.New("perf: cpu profile already active")

// CPURegion writes a pprof CPU profile covering Enter..Exit.
// It satisfies replay.Region so the profile excludes setup and reporting.
type CPURegion struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewCPURegion returns a region that profiles into path.
func NewCPURegion(path string) *CPURegion {
	return &CPURegion{path: path}
}

// Path returns the profile destination.
func (r *CPURegion) Path() string {
	return r.path
}

// Enter creates the profile file and starts CPU profiling.
func (r *CPURegion) Enter() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return ErrActive
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		os.Remove(r.path)
		return fmt.Errorf("start cpu profile: %w", err)
	}
	r.file = f
	return nil
}

// Exit stops profiling and closes the file. Exit without Enter is a no-op.
func (r *CPURegion) Exit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := r.file.Close()
	r.file = nil
	return err
}

// Memory is a point-in-time view of the Go heap.
type Memory struct {
	HeapAlloc  uint64 `json:"heap_alloc" yaml:"heap_alloc"`
	TotalAlloc uint64 `json:"total_alloc" yaml:"total_alloc"`
	NumGC      uint32 `json:"num_gc" yaml:"num_gc"`
	PauseNs    uint64 `json:"gc_pause_ns" yaml:"gc_pause_ns"`
}

// ReadMemory snapshots runtime memory statistics.
func ReadMemory() Memory {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Memory{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		NumGC:      m.NumGC,
		PauseNs:    m.PauseTotalNs,
	}
}

// Since returns the allocation and GC activity between two snapshots.
func (m Memory) Since(before Memory) Memory {
	return Memory{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc - before.TotalAlloc,
		NumGC:      m.NumGC - before.NumGC,
		PauseNs:    m.PauseNs - before.PauseNs,
	}
}

// FormatBytes renders a byte count with a decimal unit.
func FormatBytes(b uint64) string {
	switch {
	case b >= 1e9:
		return fmt.Sprintf("%.1f GB", float64(b)/1e9)
	case b >= 1e6:
		return fmt.Sprintf("%.1f MB", float64(b)/1e6)
	case b >= 1e3:
		return fmt.Sprintf("%.1f KB", float64(b)/1e3)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
