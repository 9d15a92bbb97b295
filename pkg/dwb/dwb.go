// Package dwb implements the Deferred Write Batch: an ordered queue of
// idempotent write operations a handler accumulates while it still
// holds only a read-only snapshot, deferred past any external I/O the
// handler performs, and applied atomically inside the transaction that
// finalizes the iteration. If the handler returns an error the batch is
// discarded unapplied.
//
// Rust's implementation (original_source/crates/api/src/state_controller/
// db_write_batch.rs) represents each operation as a boxed
// FnOnce(&mut Transaction) -> Result<(), Error> trait object. Go has no
// trait-object equivalent worth keeping for a handful of known
// operation shapes, so carbide-core closes the vocabulary to a fixed
// set of WriteOp variants instead — each one also a unit of the JSON
// Schema Schema() generates for tooling/inspection.
package dwb

import (
	"context"
	"fmt"

	"github.com/nvidia/carbide-core/internal/store"
)

// WriteOp is one deferred write. Apply receives the transaction the
// State-Handler Framework opened to finalize the current iteration.
type WriteOp interface {
	Apply(ctx context.Context, tx *store.Tx) error
	opName() string
}

// Batch accumulates WriteOps in the order a handler pushed them and
// applies them atomically once the handler has returned its outcome.
// It is single-producer: exactly one handler invocation owns a Batch at
// a time, matching the SHF contract that only the dispatched handler
// may push to it.
type Batch struct {
	ops []WriteOp
}

// New returns an empty batch.
func New() *Batch {
	return &Batch{}
}

// Push appends op to the batch. Order is preserved; ApplyAll applies
// operations in push order.
func (b *Batch) Push(op WriteOp) {
	b.ops = append(b.ops, op)
}

// Len reports how many operations are queued.
func (b *Batch) Len() int {
	return len(b.ops)
}

// ApplyAll applies every queued operation in order inside tx, stopping
// at the first error. It consumes the batch: after a call (successful
// or not) the batch is empty, mirroring the Rust apply_all's
// self-by-value consumption.
func (b *Batch) ApplyAll(ctx context.Context, tx *store.Tx) error {
	ops := b.ops
	b.ops = nil
	for i, op := range ops {
		if err := op.Apply(ctx, tx); err != nil {
			return fmt.Errorf("apply deferred write %d (%s): %w", i, op.opName(), err)
		}
	}
	return nil
}
