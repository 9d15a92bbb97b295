// Package statecontroller implements the generic State-Handler
// Framework: an iteration loop that, for every object of a given kind,
// acquires an exclusive lease, loads a read-only snapshot, dispatches
// to a Handler, and finalizes whatever Outcome the handler returns by
// persisting the transition, the history row, and any deferred writes
// inside one transaction.
//
// Grounded in original_source/crates/api/src/state_controller/
// state_handler.rs (StateHandlerOutcome, StateHandler,
// StateHandlerContext) and common_services.rs (the Services bundle),
// with the iteration-loop shape following pkg/cache/flusher's
// ticker-driven, context-cancellable run loop.
package statecontroller

import (
	"runtime"

	"github.com/nvidia/carbide-core/internal/store"
)

// OutcomeKind is the closed set of shapes a handler dispatch can
// produce.
type OutcomeKind string

const (
	KindWait       OutcomeKind = "wait"
	KindTransition OutcomeKind = "transition"
	KindDoNothing  OutcomeKind = "do_nothing"
	KindDeleted    OutcomeKind = "deleted"
)

// StateLabeler lets a concrete controller state report a stable string
// label for persistence and logging without the framework needing to
// know its concrete type.
type StateLabeler interface {
	StateLabel() string
}

// Outcome is the generic result of one handler dispatch. S is the
// concrete controller state type (e.g. pkg/networksegment.State).
// Exactly one of the Kind-implied fields is meaningful: NextState for
// Transition, Reason for Wait, neither for DoNothing/Deleted.
type Outcome[S StateLabeler] struct {
	Kind       OutcomeKind
	NextState  S
	Reason     string
	SourceFile string
	SourceLine int
	Tx         *store.Tx
}

func callerLoc(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", 0
	}
	return file, line
}

// Wait reports that the object's state is unchanged but the handler
// wants to be re-dispatched later (e.g. polling for external
// completion). reason is persisted to object_history for operators.
func Wait[S StateLabeler](reason string) Outcome[S] {
	file, line := callerLoc(1)
	return Outcome[S]{Kind: KindWait, Reason: reason, SourceFile: file, SourceLine: line}
}

// Transition advances the object to nextState.
func Transition[S StateLabeler](nextState S) Outcome[S] {
	file, line := callerLoc(1)
	return Outcome[S]{Kind: KindTransition, NextState: nextState, SourceFile: file, SourceLine: line}
}

// DoNothing reports a clean no-op dispatch: the object is in a stable
// terminal-for-now state and does not need re-dispatch until something
// external marks it for further work (e.g. deletion).
func DoNothing[S StateLabeler]() Outcome[S] {
	file, line := callerLoc(1)
	return Outcome[S]{Kind: KindDoNothing, SourceFile: file, SourceLine: line}
}

// Deleted reports that the handler has finished tearing the object
// down; the framework removes its Object row after finalizing.
func Deleted[S StateLabeler]() Outcome[S] {
	file, line := callerLoc(1)
	return Outcome[S]{Kind: KindDeleted, SourceFile: file, SourceLine: line}
}

// WithTx attaches a transaction the handler already opened (e.g. to
// read-lock a child row before deciding), so the framework's finalize
// step reuses it instead of opening a second one.
func (o Outcome[S]) WithTx(tx *store.Tx) Outcome[S] {
	o.Tx = tx
	return o
}
