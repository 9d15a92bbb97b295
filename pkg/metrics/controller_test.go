package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewControllerMetricsNilWhenDisabled(t *testing.T) {
	InitRegistry(nil)
	defer InitRegistry(nil)

	if m := NewControllerMetrics(); m != nil {
		t.Error("expected nil ControllerMetrics when metrics are disabled")
	}
}

func TestNilControllerMetricsMethodsAreNoOps(t *testing.T) {
	var m *ControllerMetrics
	// none of these may panic on a nil receiver.
	m.RecordDispatch("network-segment", "transition", time.Millisecond)
	m.RecordHandlerError("network-segment", "db")
	m.RecordSlaBreach("network-segment", "ready")
	m.RecordAllocationAttempt("seg-1", true)
	m.RecordHostInbandAmbiguous("seg-1")
}

func TestNewControllerMetricsRegistersSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitRegistry(reg)
	defer InitRegistry(nil)

	m := NewControllerMetrics()
	if m == nil {
		t.Fatal("expected non-nil ControllerMetrics when metrics are enabled")
	}

	m.RecordDispatch("network-segment", "transition", 10*time.Millisecond)
	m.RecordHandlerError("network-segment", "db")
	m.RecordSlaBreach("network-segment", "ready")
	m.RecordAllocationAttempt("seg-1", true)
	m.RecordHostInbandAmbiguous("seg-1")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family after recording")
	}
}
