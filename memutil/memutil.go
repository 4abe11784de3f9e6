// Package memutil provides best-effort memory reclamation for long-running
// research loops on constrained hardware. Every reclaim pass forces
// runtime-level garbage collection and returns freed pages to the OS; when
// an accelerator backend is registered (CUDA-style or unified-memory), its
// cached allocations are released as well.
//
// Accelerator access in Go requires external cgo bindings, so backends plug
// in through Register the way database/sql drivers do. Without a registered
// backend the package degrades to the runtime-level pass and MemoryStats
// returns nil. Nothing in this package ever panics or returns an error to
// the caller: reclamation is advisory and must not abort the workflow.
//
// Reclaim may block until outstanding accelerator operations complete, so
// call it at phase boundaries (after a search burst, after a model call,
// before final generation), not inside tight loops.
package memutil

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/hupe1980/deepresearch/logging"
)

// Backend kinds, ordered by reclamation preference.
const (
	// KindCUDA identifies discrete-GPU backends with explicit cache and
	// synchronization control.
	KindCUDA = "cuda"
	// KindUnified identifies unified-memory backends (integrated GPUs,
	// Apple silicon) with limited introspection.
	KindUnified = "unified"
)

// Stats is an observational snapshot of accelerator memory usage. Figures
// are in megabytes and non-negative when present.
type Stats struct {
	Backend        string  `json:"backend"`
	AllocatedMB    float64 `json:"allocated_mb,omitempty"`
	ReservedMB     float64 `json:"reserved_mb,omitempty"`
	MaxAllocatedMB float64 `json:"max_allocated_mb,omitempty"`
	Note           string  `json:"note,omitempty"`
	// Err carries a descriptive message when the backend failed to report;
	// failures are surfaced here, never raised.
	Err string `json:"error,omitempty"`
}

// Backend is an accelerator-memory backend. Implementations live in cgo
// binding packages and register themselves in init().
type Backend interface {
	// Kind returns KindCUDA or KindUnified.
	Kind() string
	// ReleaseCache frees cached allocations held by the backend allocator.
	// Unified backends without that capability return ErrUnsupported.
	ReleaseCache() error
	// Synchronize blocks until outstanding accelerator operations complete.
	Synchronize() error
	// Stats reports current usage figures.
	Stats() (*Stats, error)
}

// ErrUnsupported is returned by backends for capabilities they do not expose.
type unsupportedError struct{ op string }

func (e *unsupportedError) Error() string { return "memutil: " + e.op + " not supported" }

// ErrUnsupported marks a backend capability as unavailable.
func ErrUnsupported(op string) error { return &unsupportedError{op: op} }

// IsUnsupported reports whether err marks an unavailable capability.
func IsUnsupported(err error) bool {
	_, ok := err.(*unsupportedError)
	return ok
}

var (
	mu       sync.RWMutex
	backends []Backend
)

// Register makes an accelerator backend available for reclamation and
// introspection. Intended to be called from a binding package's init().
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends = append(backends, b)
}

// active returns the preferred backend: CUDA-style first, then unified, else nil.
func active() Backend {
	mu.RLock()
	defer mu.RUnlock()
	for _, kind := range []string{KindCUDA, KindUnified} {
		for _, b := range backends {
			if b.Kind() == kind {
				return b
			}
		}
	}
	return nil
}

// Reclaim releases memory at a phase boundary. The runtime-level pass runs
// unconditionally; accelerator reclamation is attempted when a backend is
// registered. Backend failures are logged and swallowed.
func Reclaim(logger logging.Logger) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	runtime.GC()
	debug.FreeOSMemory()

	b := active()
	if b == nil {
		logger.Debug("memutil.reclaim", "backend", "none")
		return
	}

	switch b.Kind() {
	case KindCUDA:
		if err := b.ReleaseCache(); err != nil {
			logger.Warn("memutil.reclaim.release_failed", "backend", b.Kind(), "error", err.Error())
			return
		}
		if err := b.Synchronize(); err != nil {
			logger.Warn("memutil.reclaim.sync_failed", "backend", b.Kind(), "error", err.Error())
			return
		}
		logger.Info("memutil.reclaim", "backend", b.Kind())
	case KindUnified:
		if err := b.ReleaseCache(); err != nil {
			if IsUnsupported(err) {
				logger.Debug("memutil.reclaim", "backend", b.Kind(), "note", "cache release not supported")
				return
			}
			logger.Warn("memutil.reclaim.release_failed", "backend", b.Kind(), "error", err.Error())
			return
		}
		logger.Info("memutil.reclaim", "backend", b.Kind())
	}
}

// MemoryStats returns a snapshot of accelerator memory usage, or nil when no
// backend is registered. Backend failures are reported in Stats.Err; this
// function never panics.
func MemoryStats() *Stats {
	b := active()
	if b == nil {
		return nil
	}

	stats, err := func() (s *Stats, err error) {
		defer func() {
			if r := recover(); r != nil {
				s = nil
				err = ErrUnsupported("stats")
			}
		}()
		return b.Stats()
	}()
	if err != nil {
		return &Stats{Backend: b.Kind(), Err: err.Error()}
	}
	if stats == nil {
		return &Stats{Backend: b.Kind(), Note: "backend reported no figures"}
	}
	if stats.Backend == "" {
		stats.Backend = b.Kind()
	}
	return stats
}

// reset drops all registered backends. Test helper.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	backends = nil
}
