package networksegment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvidia/carbide-core/internal/logger"
	"github.com/nvidia/carbide-core/internal/resourcepool"
	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/pkg/dwb"
	"github.com/nvidia/carbide-core/pkg/ipalloc"
	"github.com/nvidia/carbide-core/pkg/statecontroller"
	"github.com/nvidia/carbide-core/pkg/vpcprefix"
)

// Handler drives one network segment from Provisioning through Ready
// to terminal delete. It holds no per-dispatch state; drainPeriod and
// the two resource pools are fixed at construction, the Go analogue of
// original_source's NetworkSegmentStateHandler::new.
type Handler struct {
	drainPeriod time.Duration
	vlanPool    resourcepool.Pool
	vniPool     resourcepool.Pool
}

// NewHandler builds a Handler. drainPeriod is how long a segment must
// show zero allocated addresses before its row is deleted.
func NewHandler(drainPeriod time.Duration) *Handler {
	return &Handler{
		drainPeriod: drainPeriod,
		vlanPool:    resourcepool.Vlan(),
		vniPool:     resourcepool.Vni(),
	}
}

var _ statecontroller.Handler[State] = (*Handler)(nil)

// HandleObjectState implements statecontroller.Handler[State].
func (h *Handler) HandleObjectState(ctx context.Context, hctx *statecontroller.Context[State]) (statecontroller.Outcome[State], error) {
	segment, err := hctx.Services.Store.GetNetworkSegment(ctx, hctx.Object.ID)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindMissingData, "get_network_segment", err)
	}

	if err := h.recordMetrics(ctx, hctx, segment); err != nil {
		logger.WarnCtx(ctx, "networksegment: metrics collection failed", logger.Err(err))
	}

	switch hctx.State.Phase {
	case PhaseProvisioning:
		return h.handleProvisioning(ctx, hctx, segment)
	case PhaseReady:
		return h.handleReady(segment)
	case PhaseDeletingDrainIps:
		return h.handleDrainAllocatedIps(ctx, hctx, segment)
	case PhaseDeletingDBDelete:
		return h.handleDBDelete(ctx, hctx, segment)
	default:
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindInvalidState, "phase", fmt.Errorf("unknown phase %q", hctx.State.Phase))
	}
}

// recordMetrics populates hctx.Metrics irrespective of the segment's
// current phase, mirroring the original's unconditional
// record_metrics call at the top of handle_object_state. Tenant
// segments are skipped: they're not under this controller's control.
func (h *Handler) recordMetrics(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) error {
	if SegmentType(segment.Type) == SegmentTypeTenant {
		return nil
	}

	prefixes, err := hctx.Services.Store.ListNetworkPrefixes(ctx, segment.ID)
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		return nil
	}

	used, err := hctx.Services.Store.CountInstanceAddressesBySegment(ctx, segment.ID)
	if err != nil {
		return err
	}

	// Metrics are reported against a single representative prefix, the
	// same assumption the original makes (it only ever indexes
	// prefixes[0]).
	total, available, reserved := prefixStats(prefixes[0], int(used))
	hctx.Metrics.Gauges["total_ips"] = float64(total)
	hctx.Metrics.Gauges["available_ips"] = float64(available)
	hctx.Metrics.Gauges["reserved_ips"] = float64(reserved)

	if segment.VpcID != "" {
		if err := h.recordVpcStats(ctx, hctx, segment.VpcID); err != nil {
			return err
		}
	}
	return nil
}

// recordVpcStats surfaces pkg/vpcprefix's linknet capacity figures for
// the VPC a segment's prefix is carved out of, computed on read from
// the network prefixes already carved out of it. A VPC with no
// registered prefix yet contributes no gauges.
func (h *Handler) recordVpcStats(ctx context.Context, hctx *statecontroller.Context[State], vpcID string) error {
	prefixes, err := hctx.Services.Store.ListVpcPrefixesByVpc(ctx, vpcID)
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		return nil
	}

	stats, err := vpcprefix.Compute(ctx, hctx.Services.Store, prefixes[0])
	if err != nil {
		return err
	}
	hctx.Metrics.Gauges["total_linknet_segments"] = float64(stats.TotalLinknetSegments)
	hctx.Metrics.Gauges["available_linknet_segments"] = float64(stats.AvailableLinknetSegments)
	return nil
}

// handleProvisioning dispatches on the segment's type: tenant segments
// are provisioned by the tenant-facing control plane and need only a
// state transition; host-inband segments bypass PAE entirely and
// adopt an existing host interface address; every other segment type
// is treated as an overlay segment and runs the full VLAN/VNI/SVI
// allocation path.
func (h *Handler) handleProvisioning(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	switch SegmentType(segment.Type) {
	case SegmentTypeTenant:
		logger.InfoCtx(ctx, "networksegment: tenant segment provisioning -> ready, not under PAE control", logger.ObjectID(segment.ID))
		return statecontroller.Transition[State](State{Phase: PhaseReady}), nil
	case SegmentTypeHostInband:
		return h.handleProvisioningHostInband(ctx, hctx, segment)
	default:
		return h.handleProvisioningOverlay(ctx, hctx, segment)
	}
}

// handleProvisioningHostInband implements the host-inband special
// case: the managed host already carries one or more interfaces
// recorded against this segment, and the segment adopts whichever one
// already falls inside its own prefix rather than having PAE assign a
// fresh address. Grounded in
// original_source/crates/api-db/src/instance_address.rs's
// AssignIpsFrom, with the ambiguous-match behavior redefined to pick
// the lowest candidate and warn instead of failing outright.
func (h *Handler) handleProvisioningHostInband(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	prefixes, err := hctx.Services.Store.ListNetworkPrefixes(ctx, segment.ID)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindDB, "list_network_prefixes", err)
	}
	if len(prefixes) == 0 {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindMissingData, "network_prefixes", fmt.Errorf("host-inband segment %s has no network prefix", segment.ID))
	}

	tx, err := hctx.Services.Store.Begin(ctx)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindTransaction, "begin", err)
	}

	addr, gateway, candidates, err := ipalloc.PickHostInband(ctx, tx, segment.ID, prefixes[0])
	if err != nil {
		_ = tx.Rollback()
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindAllocationExhausted, "pick_host_inband", err)
	}
	if candidates > 1 {
		logger.WarnCtx(ctx, fmt.Sprintf("networksegment: %d host interfaces match this segment's prefix, adopting the lowest %s", candidates, addr),
			logger.ObjectID(segment.ID))
		if hctx.Services.Metrics != nil {
			hctx.Services.Metrics.RecordHostInbandAmbiguous(segment.ID)
		}
	}

	logger.InfoCtx(ctx, fmt.Sprintf("networksegment: host-inband provisioning -> ready, adopted %s, gateway %s", addr, gateway),
		logger.ObjectID(segment.ID))
	return statecontroller.Transition[State](State{Phase: PhaseReady}).WithTx(tx), nil
}

// handleProvisioningOverlay runs the full Prefix/IP Allocation Engine
// path for an overlay segment: acquire a VLAN id and VNI from the
// shared pools if the segment doesn't already have one, then allocate
// the segment's own switched virtual interface address out of its
// first prefix. A segment with no prefix yet (not provisioned by the
// tenant-facing control plane) simply transitions straight to ready
// with no VLAN id, VNI or SVI; the Ready phase does not revisit
// allocation, so a prefix added later gets none from this handler.
func (h *Handler) handleProvisioningOverlay(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	prefixes, err := hctx.Services.Store.ListNetworkPrefixes(ctx, segment.ID)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindDB, "list_network_prefixes", err)
	}
	if len(prefixes) == 0 {
		logger.InfoCtx(ctx, "networksegment: overlay segment has no prefix yet, provisioning -> ready", logger.ObjectID(segment.ID))
		return statecontroller.Transition[State](State{Phase: PhaseReady}), nil
	}

	tx, err := hctx.Services.Store.Begin(ctx)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindTransaction, "begin", err)
	}

	changed := false
	if segment.VlanID == nil {
		vlanID, err := h.vlanPool.Acquire(ctx, tx, segment.ID)
		if err != nil {
			_ = tx.Rollback()
			return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindPoolAcquire, "vlan", err)
		}
		v := int16(vlanID)
		segment.VlanID = &v
		changed = true
	}
	if segment.VniID == nil {
		vniID, err := h.vniPool.Acquire(ctx, tx, segment.ID)
		if err != nil {
			_ = tx.Rollback()
			return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindPoolAcquire, "vni", err)
		}
		v := int32(vniID)
		segment.VniID = &v
		changed = true
	}

	svi, err := ipalloc.AllocateSvi(ctx, tx, segment.ID, prefixes[0])
	if hctx.Services.Metrics != nil {
		hctx.Services.Metrics.RecordAllocationAttempt(segment.ID, errors.Is(err, ipalloc.ErrResourceExhausted))
	}
	if err != nil {
		_ = tx.Rollback()
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindAllocationExhausted, "allocate_svi", err)
	}

	if changed {
		hctx.PendingWrites.Push(dwb.SaveNetworkSegment{Segment: segment})
	}

	logger.InfoCtx(ctx, fmt.Sprintf("networksegment: overlay provisioning -> ready, svi=%s vlan=%d vni=%d", svi, *segment.VlanID, *segment.VniID),
		logger.ObjectID(segment.ID))
	return statecontroller.Transition[State](State{Phase: PhaseReady}).WithTx(tx), nil
}

func (h *Handler) handleReady(segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	if !segment.MarkedDeleted {
		return statecontroller.DoNothing[State](), nil
	}

	deleteAt := time.Now().Add(h.drainPeriod)
	logger.Infof("networksegment %s: ready -> deleting/drain_allocated_ips, delete_at=%s", segment.ID, deleteAt)
	return statecontroller.Transition[State](State{Phase: PhaseDeletingDrainIps, DeleteAt: &deleteAt}), nil
}

// handleDrainAllocatedIps opens its own transaction to count the
// segment's remaining allocated addresses and reuses it for whichever
// outcome it decides on, via Outcome.WithTx, exactly as the original
// opens one sqlx transaction and carries it through every branch.
func (h *Handler) handleDrainAllocatedIps(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	tx, err := hctx.Services.Store.Begin(ctx)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindTransaction, "begin", err)
	}

	remaining, err := tx.CountInstanceAddressesBySegment(ctx, segment.ID)
	if err != nil {
		_ = tx.Rollback()
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindDB, "count_instance_addresses", err)
	}

	if remaining > 0 {
		deleteAt := time.Now().Add(h.drainPeriod)
		logger.InfoCtx(ctx, fmt.Sprintf("networksegment: %d allocated addresses remain, waiting until %s", remaining, deleteAt),
			logger.ObjectID(segment.ID))
		next := State{Phase: PhaseDeletingDrainIps, DeleteAt: &deleteAt}
		return statecontroller.Transition[State](next).WithTx(tx), nil
	}

	if hctx.State.DeleteAt == nil || time.Now().Before(*hctx.State.DeleteAt) {
		reason := "draining until delete_at elapses"
		if hctx.State.DeleteAt != nil {
			reason = fmt.Sprintf("cannot delete from database until draining completes at %s", hctx.State.DeleteAt.Format(time.RFC3339))
		}
		return statecontroller.Wait[State](reason).WithTx(tx), nil
	}

	return statecontroller.Transition[State](State{Phase: PhaseDeletingDBDelete}).WithTx(tx), nil
}

// handleDBDelete releases the segment's VLAN id and VNI back to their
// pools, deletes the row, and reports the object terminally deleted.
func (h *Handler) handleDBDelete(ctx context.Context, hctx *statecontroller.Context[State], segment *store.NetworkSegment) (statecontroller.Outcome[State], error) {
	tx, err := hctx.Services.Store.Begin(ctx)
	if err != nil {
		return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindTransaction, "begin", err)
	}

	if segment.VniID != nil {
		if err := h.vniPool.Release(ctx, tx, int64(*segment.VniID)); err != nil {
			_ = tx.Rollback()
			return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindPoolRelease, "vni", err)
		}
	}
	if segment.VlanID != nil {
		if err := h.vlanPool.Release(ctx, tx, int64(*segment.VlanID)); err != nil {
			_ = tx.Rollback()
			return statecontroller.Outcome[State]{}, statecontroller.NewHandlerError(statecontroller.ErrKindPoolRelease, "vlan", err)
		}
	}

	hctx.PendingWrites.Push(dwb.DeleteNetworkSegment{SegmentID: segment.ID})

	logger.InfoCtx(ctx, "networksegment: removing from database", logger.ObjectID(segment.ID))
	return statecontroller.Deleted[State]().WithTx(tx), nil
}
