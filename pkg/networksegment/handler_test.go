package networksegment

import (
	"context"
	"testing"
	"time"

	"github.com/nvidia/carbide-core/internal/resourcepool"
	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/pkg/dwb"
	"github.com/nvidia/carbide-core/pkg/statecontroller"
)

const testPrefixCIDR = "10.0.0.0/24"

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

func newHandlerContext(st *store.GORMStore, objID string, state State) *statecontroller.Context[State] {
	return &statecontroller.Context[State]{
		Services:      &statecontroller.Services{Store: st},
		Metrics:       statecontroller.NewObjectMetrics(),
		PendingWrites: dwb.New(),
		Object:        &store.Object{ID: objID, Kind: "network-segment"},
		State:         state,
	}
}

func TestHandleProvisioningTransitionsToReady(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay)})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseProvisioning})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition {
		t.Fatalf("expected transition outcome, got %s", outcome.Kind)
	}
	if outcome.NextState.Phase != PhaseReady {
		t.Errorf("expected next phase ready, got %s", outcome.NextState.Phase)
	}
}

func TestHandleReadyDoesNothingUntilMarkedDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay)})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseReady})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindDoNothing {
		t.Errorf("expected do-nothing outcome while segment is not marked deleted, got %s", outcome.Kind)
	}
}

func TestHandleReadyStartsDrainWhenMarkedDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay), MarkedDeleted: true})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseReady})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition {
		t.Fatalf("expected transition outcome, got %s", outcome.Kind)
	}
	if outcome.NextState.Phase != PhaseDeletingDrainIps {
		t.Errorf("expected next phase deleting_drain_allocated_ips, got %s", outcome.NextState.Phase)
	}
	if outcome.NextState.DeleteAt == nil {
		t.Error("expected DeleteAt to be set when starting drain")
	}
}

func TestHandleDrainWaitsWhileAddressesRemain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay), MarkedDeleted: true})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}
	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		_, err := tx.CreateInstanceAddress(ctx, &store.InstanceAddress{SegmentID: segID, PrefixID: "prefix-1", Address: "10.0.0.1/32"})
		return err
	})
	if err != nil {
		t.Fatalf("seed address failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseDeletingDrainIps})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition {
		t.Fatalf("expected transition (re-scheduled drain), got %s", outcome.Kind)
	}
	if outcome.NextState.Phase != PhaseDeletingDrainIps {
		t.Errorf("expected to stay in drain phase while addresses remain, got %s", outcome.NextState.Phase)
	}
	if outcome.Tx == nil {
		t.Error("expected handler to attach its own transaction via WithTx")
	}
	_ = outcome.Tx.Rollback()
}

func TestHandleDrainWaitsUntilDeleteAtElapses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay), MarkedDeleted: true})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	future := time.Now().Add(time.Hour)
	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseDeletingDrainIps, DeleteAt: &future})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindWait {
		t.Errorf("expected wait outcome before delete_at elapses, got %s", outcome.Kind)
	}
	_ = outcome.Tx.Rollback()
}

func TestHandleDrainProceedsToDBDeleteAfterDeleteAtElapses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay), MarkedDeleted: true})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseDeletingDrainIps, DeleteAt: &past})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition {
		t.Fatalf("expected transition to db_delete, got %s", outcome.Kind)
	}
	if outcome.NextState.Phase != PhaseDeletingDBDelete {
		t.Errorf("expected phase deleting_db_delete, got %s", outcome.NextState.Phase)
	}
	_ = outcome.Tx.Rollback()
}

func TestHandleDBDeleteReleasesResourcesAndQueuesDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := resourcepool.Seed(st, resourcepool.PoolVlan, 100, 101); err != nil {
		t.Fatalf("seed vlan pool failed: %v", err)
	}
	if err := resourcepool.Seed(st, resourcepool.PoolVni, 1000, 1001); err != nil {
		t.Fatalf("seed vni pool failed: %v", err)
	}

	vlan := int16(100)
	vni := int32(1000)
	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay), MarkedDeleted: true, VlanID: &vlan, VniID: &vni})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		_, err := resourcepool.Vlan().Acquire(ctx, tx, segID)
		if err != nil {
			return err
		}
		_, err = resourcepool.Vni().Acquire(ctx, tx, segID)
		return err
	})
	if err != nil {
		t.Fatalf("seed in-use pool entries failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseDeletingDBDelete})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindDeleted {
		t.Fatalf("expected deleted outcome, got %s", outcome.Kind)
	}
	if hctx.PendingWrites.Len() != 1 {
		t.Fatalf("expected one queued delete_network_segment write, got %d", hctx.PendingWrites.Len())
	}

	if err := outcome.Tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// resources must be back in the pool for a fresh segment to reuse.
	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		v, err := resourcepool.Vlan().Acquire(ctx, tx, "seg-b")
		if err != nil {
			return err
		}
		if v != 100 {
			t.Errorf("expected released vlan 100 to be reacquired, got %d", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reacquire vlan after release failed: %v", err)
	}
}

func TestHandleUnknownPhaseReturnsInvalidStateError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay)})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: "bogus"})

	_, err = h.HandleObjectState(ctx, hctx)
	if err == nil {
		t.Fatal("expected an error for an unknown phase")
	}
	var herr *statecontroller.HandlerError
	if !asHandlerError(err, &herr) {
		t.Fatalf("expected a *statecontroller.HandlerError, got %T", err)
	}
	if herr.Kind != statecontroller.ErrKindInvalidState {
		t.Errorf("expected ErrKindInvalidState, got %s", herr.Kind)
	}
}

func TestHandleProvisioningOverlayAcquiresPoolsAndAllocatesSvi(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := resourcepool.Seed(st, resourcepool.PoolVlan, 100, 101); err != nil {
		t.Fatalf("seed vlan pool failed: %v", err)
	}
	if err := resourcepool.Seed(st, resourcepool.PoolVni, 1000, 1001); err != nil {
		t.Fatalf("seed vni pool failed: %v", err)
	}

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeOverlay)})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}
	if _, err := st.CreateNetworkPrefix(ctx, &store.NetworkPrefix{SegmentID: segID, Prefix: testPrefixCIDR}); err != nil {
		t.Fatalf("create prefix failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseProvisioning})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition || outcome.NextState.Phase != PhaseReady {
		t.Fatalf("expected transition to ready, got %s/%v", outcome.Kind, outcome.NextState)
	}
	if outcome.Tx == nil {
		t.Fatal("expected the handler to attach its own transaction via WithTx")
	}
	if err := outcome.Tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if hctx.PendingWrites.Len() != 1 {
		t.Fatalf("expected one queued save_network_segment write, got %d", hctx.PendingWrites.Len())
	}

	rows, err := st.ListInstanceAddresses(ctx, segID)
	if err != nil {
		t.Fatalf("list instance addresses failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one persisted SVI address, got %d", len(rows))
	}
	if !rows[0].IsSvi {
		t.Error("expected the persisted allocation to be marked as the segment's SVI")
	}
}

// TestHandleProvisioningHostInbandAdoptsLowestExistingAddress seeds
// three interfaces recorded against a host-inband segment, two inside
// its prefix and one outside, and checks that provisioning bypasses
// PAE: the handler transitions to ready on its own transaction without
// erroring despite two in-prefix candidates, and inserts no new row.
// The outcome does not expose which candidate was adopted, so the
// choice of the lowest one is not asserted here.
func TestHandleProvisioningHostInbandAdoptsLowestExistingAddress(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	segID, err := st.CreateNetworkSegment(ctx, &store.NetworkSegment{Name: "seg-a", Type: string(SegmentTypeHostInband)})
	if err != nil {
		t.Fatalf("create segment failed: %v", err)
	}
	if _, err := st.CreateNetworkPrefix(ctx, &store.NetworkPrefix{SegmentID: segID, Prefix: testPrefixCIDR}); err != nil {
		t.Fatalf("create prefix failed: %v", err)
	}

	err = st.WithTransaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.CreateInstanceAddress(ctx, &store.InstanceAddress{SegmentID: segID, PrefixID: "host-iface-1", Address: "10.0.0.9/24"}); err != nil {
			return err
		}
		if _, err := tx.CreateInstanceAddress(ctx, &store.InstanceAddress{SegmentID: segID, PrefixID: "host-iface-2", Address: "10.0.0.5/24"}); err != nil {
			return err
		}
		// An interface outside the segment's prefix must never be
		// considered a candidate.
		_, err := tx.CreateInstanceAddress(ctx, &store.InstanceAddress{SegmentID: segID, PrefixID: "host-iface-3", Address: "192.168.1.1/24"})
		return err
	})
	if err != nil {
		t.Fatalf("seed host interfaces failed: %v", err)
	}

	h := NewHandler(5 * time.Minute)
	hctx := newHandlerContext(st, segID, State{Phase: PhaseProvisioning})

	outcome, err := h.HandleObjectState(ctx, hctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != statecontroller.KindTransition || outcome.NextState.Phase != PhaseReady {
		t.Fatalf("expected transition to ready, got %s/%v", outcome.Kind, outcome.NextState)
	}
	if outcome.Tx == nil {
		t.Fatal("expected the handler to attach its own transaction via WithTx")
	}
	_ = outcome.Tx.Rollback()

	// PAE must never have been exercised: no new row beyond the three
	// pre-existing host interfaces was inserted.
	rows, err := st.ListInstanceAddresses(ctx, segID)
	if err != nil {
		t.Fatalf("list instance addresses failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected no new allocation beyond the three seeded rows, got %d", len(rows))
	}
}

func asHandlerError(err error, target **statecontroller.HandlerError) bool {
	herr, ok := err.(*statecontroller.HandlerError)
	if !ok {
		return false
	}
	*target = herr
	return true
}
