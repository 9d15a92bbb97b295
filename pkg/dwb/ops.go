package dwb

import (
	"context"

	"github.com/nvidia/carbide-core/internal/store"
)

// UpsertObject persists the generic controller row (state, controller
// state, SLA deadline) at the end of an iteration.
type UpsertObject struct {
	Object *store.Object `json:"object"`
}

func (op UpsertObject) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.UpsertObject(ctx, op.Object)
}
func (UpsertObject) opName() string { return "upsert_object" }

// RecordHistory appends one transition row for audit/observability.
type RecordHistory struct {
	History *store.ObjectHistory `json:"history"`
}

func (op RecordHistory) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.RecordHistory(ctx, op.History)
}
func (RecordHistory) opName() string { return "record_history" }

// SaveNetworkSegment persists every column of a NetworkSegment,
// used when a handler mutates DrainDeleteAt/VlanID/VniID.
type SaveNetworkSegment struct {
	Segment *store.NetworkSegment `json:"segment"`
}

func (op SaveNetworkSegment) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.SaveNetworkSegment(ctx, op.Segment)
}
func (SaveNetworkSegment) opName() string { return "save_network_segment" }

// DeleteNetworkSegment hard-deletes a segment row on terminal delete.
type DeleteNetworkSegment struct {
	SegmentID string `json:"segment_id"`
}

func (op DeleteNetworkSegment) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.DeleteNetworkSegment(ctx, op.SegmentID)
}
func (DeleteNetworkSegment) opName() string { return "delete_network_segment" }

// DeleteInstanceAddressesBySegment drains every allocated address for
// a segment, the first step of the Deleting{DrainAllocatedIps} state.
type DeleteInstanceAddressesBySegment struct {
	SegmentID string `json:"segment_id"`
}

func (op DeleteInstanceAddressesBySegment) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.DeleteInstanceAddressesBySegment(ctx, op.SegmentID)
}
func (DeleteInstanceAddressesBySegment) opName() string { return "delete_instance_addresses_by_segment" }

// ReleaseResourcePoolEntry returns a VLAN id or VNI to its pool on
// terminal delete.
type ReleaseResourcePoolEntry struct {
	PoolName string `json:"pool_name"`
	Value    int64  `json:"value"`
}

func (op ReleaseResourcePoolEntry) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.ReleaseResourcePoolEntry(ctx, op.PoolName, op.Value)
}
func (ReleaseResourcePoolEntry) opName() string { return "release_resource_pool_entry" }

// SaveVpcPrefix persists every column of a VpcPrefix through
// Tx.SaveVpcPrefix, bumping its Version. No allocation path in this
// module queues it; linknet statistics are computed on read by
// pkg/vpcprefix.
type SaveVpcPrefix struct {
	Prefix *store.VpcPrefix `json:"prefix"`
}

func (op SaveVpcPrefix) Apply(ctx context.Context, tx *store.Tx) error {
	return tx.SaveVpcPrefix(ctx, op.Prefix)
}
func (SaveVpcPrefix) opName() string { return "save_vpc_prefix" }
