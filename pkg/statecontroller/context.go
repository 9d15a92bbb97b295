package statecontroller

import (
	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/pkg/dwb"
	"github.com/nvidia/carbide-core/pkg/metrics"
)

// Services bundles the dependencies every handler may need, the Go
// analogue of original_source's CommonStateHandlerServices. Concrete
// controllers (e.g. pkg/networksegment) type-assert or wrap this with
// their own typed accessors; the framework itself only ever reads
// Store. Metrics may be nil when metrics are disabled.
type Services struct {
	Store   *store.GORMStore
	Metrics *metrics.ControllerMetrics
}

// ObjectMetrics is a per-dispatch scratch area where a handler records
// gauges and counters about its object (e.g. "available_ips" for a
// network segment). The controller creates a fresh one for each
// dispatch and does not read it afterwards: its contents are neither
// merged into an iteration-wide report nor passed to pkg/metrics.
type ObjectMetrics struct {
	Gauges   map[string]float64
	Counters map[string]float64
}

// NewObjectMetrics returns an empty, ready-to-use ObjectMetrics.
func NewObjectMetrics() *ObjectMetrics {
	return &ObjectMetrics{
		Gauges:   make(map[string]float64),
		Counters: make(map[string]float64),
	}
}

// Context is the per-dispatch argument passed to a Handler: the
// read-only snapshot of the object plus a place to queue deferred
// writes. Handlers must treat Object and State as immutable; all
// mutation happens by pushing onto PendingWrites or returning a
// Transition outcome.
type Context[S StateLabeler] struct {
	Services      *Services
	Metrics       *ObjectMetrics
	PendingWrites *dwb.Batch

	Object *store.Object
	State  S
}
