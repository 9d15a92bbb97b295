package dwb

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nvidia/carbide-core/internal/store"
)

func newTestStore(t *testing.T) *store.GORMStore {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return st
}

func TestBatchApplyAllOrderAndConsumption(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	b := New()
	b.Push(UpsertObject{Object: &store.Object{ID: "obj-1", Kind: "network-segment", ControllerState: "provisioning"}})
	b.Push(RecordHistory{History: &store.ObjectHistory{ObjectID: "obj-1", ObjectKind: "network-segment", ToState: "provisioning", OutcomeKind: "success"}})

	if b.Len() != 2 {
		t.Fatalf("expected 2 queued ops, got %d", b.Len())
	}

	err := st.WithTransaction(ctx, func(tx *store.Tx) error {
		return b.ApplyAll(ctx, tx)
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if b.Len() != 0 {
		t.Errorf("expected batch to be consumed after ApplyAll, got len %d", b.Len())
	}

	got, err := st.GetObject(ctx, "obj-1")
	if err != nil {
		t.Fatalf("object not persisted: %v", err)
	}
	if got.ControllerState != "provisioning" {
		t.Errorf("expected provisioning, got %s", got.ControllerState)
	}
}

// failingOp always fails, used to verify ApplyAll stops at the first error
// and that later ops never run.
type failingOp struct{}

func (failingOp) Apply(ctx context.Context, tx *store.Tx) error { return errors.New("op failed") }
func (failingOp) opName() string                                { return "failing_op" }

func TestBatchApplyAllStopsAtFirstError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	b := New()
	b.Push(UpsertObject{Object: &store.Object{ID: "before-failure", Kind: "network-segment", ControllerState: "provisioning"}})
	b.Push(failingOp{})
	b.Push(UpsertObject{Object: &store.Object{ID: "never-applied", Kind: "network-segment", ControllerState: "provisioning"}})

	err := st.WithTransaction(ctx, func(tx *store.Tx) error {
		return b.ApplyAll(ctx, tx)
	})
	if err == nil {
		t.Fatal("expected ApplyAll to return an error")
	}

	// the whole transaction rolled back, so even the op queued before the
	// failure must not be visible.
	if _, err := st.GetObject(ctx, "before-failure"); err == nil {
		t.Error("expected pre-failure op to be rolled back with the transaction")
	}
	if _, err := st.GetObject(ctx, "never-applied"); err == nil {
		t.Error("expected op queued after the failure to never have applied")
	}
}

func TestSchemaCoversEveryVariant(t *testing.T) {
	s := Schema()
	// Definitions also holds the store models the variants point at
	// (Object, ObjectHistory, ...), so each variant is looked up by name.
	for _, v := range variants {
		name := reflect.TypeOf(v).Name()
		if _, ok := s.Definitions[name]; !ok {
			t.Errorf("expected a schema definition for WriteOp variant %s", name)
		}
	}
}

func TestReleaseResourcePoolEntryOp(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := store.SeedResourcePool(st.DB(), "vlan", 100, 101); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var acquired int64
	err := st.WithTransaction(ctx, func(tx *store.Tx) error {
		v, err := tx.AcquireResourcePoolEntry(ctx, "vlan", "seg-1")
		acquired = v
		return err
	})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	b := New()
	b.Push(ReleaseResourcePoolEntry{PoolName: "vlan", Value: acquired})

	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		return b.ApplyAll(ctx, tx)
	})
	if err != nil {
		t.Fatalf("release op failed: %v", err)
	}

	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		v, err := tx.AcquireResourcePoolEntry(ctx, "vlan", "seg-2")
		if err != nil {
			return err
		}
		if v != acquired {
			t.Errorf("expected released value %d to be reacquired, got %d", acquired, v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reacquire after release op failed: %v", err)
	}
}
