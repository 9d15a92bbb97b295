package store

import "context"

// ListInstanceAddresses implements Reader.
func (s *GORMStore) ListInstanceAddresses(ctx context.Context, segmentID string) ([]*InstanceAddress, error) {
	return listByField[InstanceAddress](s.db, ctx, "segment_id", segmentID)
}

// CountInstanceAddressesBySegment implements Reader.
func (s *GORMStore) CountInstanceAddressesBySegment(ctx context.Context, segmentID string) (int64, error) {
	return countByField[InstanceAddress](s.db, ctx, "segment_id", segmentID)
}

// ListInstanceAddressesByPrefix returns every address allocated out of
// a given prefix. PAE's UsedOverlayNetworkIpResolver does not call it;
// it reads ListInstanceAddressesBySegment.
func (t *Tx) ListInstanceAddressesByPrefix(ctx context.Context, prefixID string) ([]*InstanceAddress, error) {
	return listByField[InstanceAddress](t.db, ctx, "prefix_id", prefixID)
}

// ListInstanceAddressesBySegment returns every address allocated
// within a segment — the preferred "used_prefixes" view.
func (t *Tx) ListInstanceAddressesBySegment(ctx context.Context, segmentID string) ([]*InstanceAddress, error) {
	return listByField[InstanceAddress](t.db, ctx, "segment_id", segmentID)
}

// CountInstanceAddressesBySegment is the transaction-scoped count the
// network segment handler uses during its drain check. There is no
// separate machine_interface table in this schema — the count folds
// together what the original tracked as two counts (machine interface
// bindings and instance addresses), since both are just rows in
// instance_addresses here.
func (t *Tx) CountInstanceAddressesBySegment(ctx context.Context, segmentID string) (int64, error) {
	return countByField[InstanceAddress](t.db, ctx, "segment_id", segmentID)
}

// CreateInstanceAddress persists a new allocation row inside the
// caller's transaction; called only after the allocator has committed
// to a candidate address under the ACCESS EXCLUSIVE table lock.
func (t *Tx) CreateInstanceAddress(ctx context.Context, a *InstanceAddress) (string, error) {
	return createWithID(t.db, ctx, a, func(n *InstanceAddress, id string) { n.ID = id }, a.ID, ErrObjectAlreadyExists)
}

// DeleteInstanceAddressesBySegment removes every allocation for a
// segment; the caller must already hold the ACCESS EXCLUSIVE lock.
func (t *Tx) DeleteInstanceAddressesBySegment(ctx context.Context, segmentID string) error {
	return t.db.WithContext(ctx).Where("segment_id = ?", segmentID).Delete(&InstanceAddress{}).Error
}

// LockInstanceAddressesTable takes the ACCESS EXCLUSIVE table lock PAE
// requires before computing used IPs and inserting a new allocation,
// serializing all allocation attempts against this table. Must be
// called from inside an open transaction; on SQLite (tests / local
// dev) this is a no-op since SQLite already serializes writers.
func (t *Tx) LockInstanceAddressesTable(ctx context.Context) error {
	if t.db.Dialector.Name() != "postgres" {
		return nil
	}
	return t.db.WithContext(ctx).Exec("LOCK TABLE instance_addresses IN ACCESS EXCLUSIVE MODE").Error
}
