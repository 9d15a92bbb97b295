package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestDispatchSpanEndIsSafeToCall(t *testing.T) {
	ctx, end := DispatchSpan(context.Background(), "network-segment", "seg-1", "ready")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end("transition", "handler.go", 42, nil)
}

func TestDispatchSpanRecordsError(t *testing.T) {
	_, end := DispatchSpan(context.Background(), "network-segment", "seg-1", "ready")
	end("wait", "handler.go", 10, errors.New("boom"))
}

func TestAllocationSpanEndIsSafeToCall(t *testing.T) {
	ctx, end := AllocationSpan(context.Background(), "seg-1")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end("prefix-1", "10.0.0.1/32", nil)
}
