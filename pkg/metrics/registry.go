// Package metrics defines the controller's Prometheus metrics, gated
// behind an explicit InitRegistry call the same way the teacher gates
// its own cache/NFS metrics: nil registry means metrics collection
// compiles to a no-op rather than forcing every call site to check a
// flag.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry installs reg as the active registry and enables metric
// collection. Passing nil disables metrics with zero overhead.
func InitRegistry(reg *prometheus.Registry) {
	mu.Lock()
	defer mu.Unlock()
	registry = reg
	enabled.Store(reg != nil)
}

// IsEnabled reports whether a registry has been installed.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active registry, or a fresh unregistered one
// if metrics were never initialized — callers that unconditionally
// call promauto.With(GetRegistry()) still work, they just never get
// scraped.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		return prometheus.NewRegistry()
	}
	return registry
}
