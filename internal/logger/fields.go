package logger

import "log/slog"

// Standard field keys for structured logging across the controller.
// Use these keys consistently across all log statements for aggregation
// and querying against any object kind the framework drives.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Controller object identity
	// ========================================================================
	KeyObjectKind      = "object_kind"      // kind of object being reconciled (network-segment, ...)
	KeyObjectID        = "object_id"        // object identifier
	KeyControllerState = "controller_state" // current persisted controller state label
	KeyStateVersion    = "state_version"    // optimistic version of the persisted object

	// ========================================================================
	// Iteration / dispatch
	// ========================================================================
	KeyIteration   = "iteration"    // controller iteration number
	KeyProcessorID = "processor_id" // identity of the dispatching worker
	KeyOutcomeKind = "outcome_kind" // Wait/Transition/DoNothing/Deleted
	KeySourceFile  = "source_file"  // call-site file of the outcome constructor
	KeySourceLine  = "source_line"  // call-site line of the outcome constructor
	KeyDurationMs  = "duration_ms"  // dispatch duration in milliseconds

	// ========================================================================
	// Leasing
	// ========================================================================
	KeyLeaseOwner     = "lease_owner"      // current lease holder token
	KeyLeaseExpiresAt = "lease_expires_at" // lease expiry timestamp

	// ========================================================================
	// SLA escalation
	// ========================================================================
	KeySlaDeadline = "sla_deadline" // deadline the object was due to leave a state by

	// ========================================================================
	// Handler errors
	// ========================================================================
	KeyErrorLabel = "error_label" // HandlerError metric label

	// ========================================================================
	// IP / prefix allocation
	// ========================================================================
	KeyPrefixID        = "prefix_id"          // segment prefix under allocation
	KeyAssignedNetwork = "assigned_network"   // allocated network/address
	KeyStrategy        = "allocation_strategy" // address selection strategy
	KeyVlanID          = "vlan_id"            // resource-pool VLAN id
	KeyVniID           = "vni_id"             // resource-pool VNI
)

// ObjectKind returns a slog.Attr for the controller object kind.
func ObjectKind(v string) slog.Attr { return slog.String(KeyObjectKind, v) }

// ObjectID returns a slog.Attr for the object identifier.
func ObjectID(v string) slog.Attr { return slog.String(KeyObjectID, v) }

// ControllerState returns a slog.Attr for the current controller state.
func ControllerState(v string) slog.Attr { return slog.String(KeyControllerState, v) }

// Iteration returns a slog.Attr for the controller iteration number.
func Iteration(v uint64) slog.Attr { return slog.Uint64(KeyIteration, v) }

// ProcessorID returns a slog.Attr for the dispatching worker identity.
func ProcessorID(v string) slog.Attr { return slog.String(KeyProcessorID, v) }

// StateVersion returns a slog.Attr for the optimistic object version.
func StateVersion(v uint64) slog.Attr { return slog.Uint64(KeyStateVersion, v) }

// OutcomeKind returns a slog.Attr for the outcome variant name.
func OutcomeKind(v string) slog.Attr { return slog.String(KeyOutcomeKind, v) }

// SourceRef returns the file/line attrs for a captured call site.
func SourceRef(file string, line int) []slog.Attr {
	return []slog.Attr{
		slog.String(KeySourceFile, file),
		slog.Int(KeySourceLine, line),
	}
}

// LeaseOwner returns a slog.Attr for the current lease holder token.
func LeaseOwner(v string) slog.Attr { return slog.String(KeyLeaseOwner, v) }

// ErrorLabel returns a slog.Attr for a HandlerError metric label.
func ErrorLabel(v string) slog.Attr { return slog.String(KeyErrorLabel, v) }

// PrefixID returns a slog.Attr for the segment prefix under allocation.
func PrefixID(v string) slog.Attr { return slog.String(KeyPrefixID, v) }

// AssignedNetwork returns a slog.Attr for the allocated network/address.
func AssignedNetwork(v string) slog.Attr { return slog.String(KeyAssignedNetwork, v) }

// AllocationStrategy returns a slog.Attr for the address selection strategy.
func AllocationStrategy(v string) slog.Attr { return slog.String(KeyStrategy, v) }

// VlanID returns a slog.Attr for a resource-pool VLAN id.
func VlanID(v int16) slog.Attr { return slog.Int64(KeyVlanID, int64(v)) }

// VniID returns a slog.Attr for a resource-pool VNI.
func VniID(v int32) slog.Attr { return slog.Int64(KeyVniID, int64(v)) }

// Additional generic keys kept from the ambient logging convention.
const (
	KeyError     = "error"      // error message
	KeyErrorCode = "error_code" // numeric error code
)

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
