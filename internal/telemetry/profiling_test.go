package telemetry

import "testing"

func TestInitProfilingDisabledIsNoOp(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if IsProfilingEnabled() {
		t.Error("expected IsProfilingEnabled to report false")
	}
	if err := shutdown(); err != nil {
		t.Errorf("expected no-op shutdown to succeed, got: %v", err)
	}
}

func TestParseProfileTypeKnownValues(t *testing.T) {
	known := []string{
		"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space",
		"goroutines", "mutex_count", "mutex_duration", "block_count", "block_duration",
	}
	for _, name := range known {
		if _, err := parseProfileType(name); err != nil {
			t.Errorf("expected %q to parse, got error: %v", name, err)
		}
	}
}

func TestParseProfileTypeUnknownReturnsError(t *testing.T) {
	if _, err := parseProfileType("bogus"); err == nil {
		t.Error("expected an error for an unknown profile type")
	}
}
