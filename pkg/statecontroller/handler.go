package statecontroller

import "context"

// Handler reconciles one object from its current snapshot toward the
// next Outcome. Implementations must be side-effect-free except
// through ctx.PendingWrites and the transaction attached via WithTx —
// any external I/O (Redfish, IB fabric, etc. in the original; HTTP/gRPC
// calls to fleet services here) must happen before the handler decides
// on an Outcome, never after, so a crash mid-finalize never leaves an
// external system and the database disagreeing about what happened.
type Handler[S StateLabeler] interface {
	HandleObjectState(ctx context.Context, hctx *Context[S]) (Outcome[S], error)
}

// StateCodec converts between the Object's opaque StateData and the
// handler's concrete state type. The Controller decodes StateData
// before each dispatch and hands the result to the handler as
// Context.State; during finalize it encodes a Transition outcome's
// NextState back into StateData.
type StateCodec[S StateLabeler] interface {
	Decode(data string) (S, error)
	Encode(state S) (string, error)
}
