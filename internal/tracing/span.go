// Package tracing wraps every state-handler dispatch and prefix/IP
// allocation call in an OpenTelemetry span carrying the object kind,
// object id, controller state, outcome kind, and captured call-site
// location as attributes. This is the Go-native stand-in for Rust's
// #[track_caller]/std::panic::Location source-location capture, which
// Go has no direct equivalent for.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nvidia/carbide-core/pkg/statecontroller"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// DispatchSpan starts a span around one handler dispatch. The caller
// must call the returned end func with the outcome kind and source
// location once the handler returns.
func DispatchSpan(ctx context.Context, objectKind, objectID, controllerState string) (context.Context, func(outcomeKind, sourceFile string, sourceLine int, err error)) {
	ctx, span := tracer().Start(ctx, "statecontroller.dispatch",
		trace.WithAttributes(
			attribute.String("object.kind", objectKind),
			attribute.String("object.id", objectID),
			attribute.String("controller.state", controllerState),
		),
	)
	return ctx, func(outcomeKind, sourceFile string, sourceLine int, err error) {
		span.SetAttributes(
			attribute.String("outcome.kind", outcomeKind),
			attribute.String("outcome.source_file", sourceFile),
			attribute.Int("outcome.source_line", sourceLine),
		)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// AllocationSpan starts a span around one PAE allocation call.
func AllocationSpan(ctx context.Context, segmentID string) (context.Context, func(prefixID, assignedNetwork string, err error)) {
	ctx, span := tracer().Start(ctx, "ipalloc.allocate",
		trace.WithAttributes(attribute.String("segment.id", segmentID)),
	)
	return ctx, func(prefixID, assignedNetwork string, err error) {
		span.SetAttributes(
			attribute.String("prefix.id", prefixID),
			attribute.String("assigned.network", assignedNetwork),
		)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
