package store

import (
	"context"

	"gorm.io/gorm"
)

// Reader is the read-only half of the store surface: snapshot loads for
// the State-Handler Framework's read-before-dispatch step and for
// metrics/introspection, none of which may observe a half-committed
// transaction.
type Reader interface {
	GetObject(ctx context.Context, id string) (*Object, error)
	ListObjectsByKind(ctx context.Context, kind string) ([]*Object, error)

	GetNetworkSegment(ctx context.Context, id string) (*NetworkSegment, error)
	ListNetworkPrefixes(ctx context.Context, segmentID string) ([]*NetworkPrefix, error)
	ListInstanceAddresses(ctx context.Context, segmentID string) ([]*InstanceAddress, error)
	CountInstanceAddressesBySegment(ctx context.Context, segmentID string) (int64, error)

	GetVpcPrefix(ctx context.Context, id string) (*VpcPrefix, error)
}

// Transactional is the write half: every method either participates in
// a caller-supplied transaction or opens its own, and is the only
// surface the Deferred Write Batch and the allocator are allowed to
// call into.
type Transactional interface {
	Reader

	// WithTransaction runs fn inside a new transaction, committing on a
	// nil return and rolling back otherwise. fn receives a *Tx bound to
	// the transaction.
	WithTransaction(ctx context.Context, fn func(tx *Tx) error) error

	UpsertObject(ctx context.Context, obj *Object) error
	RecordHistory(ctx context.Context, h *ObjectHistory) error
	DeleteObject(ctx context.Context, id string) error
}

// Tx is the transaction-scoped handle passed to WithTransaction
// callbacks and to PAE; it exposes the same methods as GORMStore but
// bound to tx.db rather than the pool, so savepoints nest correctly.
type Tx struct {
	db *gorm.DB
}

// DB returns the underlying *gorm.DB bound to this transaction scope.
func (t *Tx) DB() *gorm.DB { return t.db }

// Savepoint runs fn inside a nested transaction (a SQL SAVEPOINT),
// letting partial progress on one interface roll back without
// aborting the whole iteration — the mechanism PAE's per-interface
// allocation loop depends on.
func (t *Tx) Savepoint(fn func(tx *Tx) error) error {
	return t.db.Transaction(func(inner *gorm.DB) error {
		return fn(&Tx{db: inner})
	})
}

// WithTransaction implements Transactional.
func (s *GORMStore) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gdb *gorm.DB) error {
		return fn(&Tx{db: gdb})
	})
}

// Begin opens a transaction the caller commits or rolls back directly,
// rather than inside a WithTransaction closure. Handlers that need
// their own reads (e.g. counting child rows before deciding an
// Outcome) and the framework's finalize write to share one
// transaction use this, attaching the result via Outcome.WithTx.
func (s *GORMStore) Begin(ctx context.Context) (*Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Tx{db: tx}, nil
}

// Commit commits a transaction opened via Begin.
func (t *Tx) Commit() error { return t.db.Commit().Error }

// Rollback rolls back a transaction opened via Begin. Safe to call
// after Commit has already failed; gorm no-ops a second finalize.
func (t *Tx) Rollback() error { return t.db.Rollback().Error }
