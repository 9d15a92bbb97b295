package store

import "context"

// GetNetworkSegment implements Reader.
func (s *GORMStore) GetNetworkSegment(ctx context.Context, id string) (*NetworkSegment, error) {
	return getByField[NetworkSegment](s.db, ctx, "id", id, ErrNetworkSegmentNotFound)
}

// CreateNetworkSegment persists a new segment, generating an id if needed.
func (s *GORMStore) CreateNetworkSegment(ctx context.Context, seg *NetworkSegment) (string, error) {
	return createWithID(s.db, ctx, seg, func(n *NetworkSegment, id string) { n.ID = id }, seg.ID, ErrObjectAlreadyExists)
}

// SaveNetworkSegment persists every column of an existing segment,
// used by the handler when it mutates DrainDeleteAt/VlanID/VniID.
func (s *GORMStore) SaveNetworkSegment(ctx context.Context, seg *NetworkSegment) error {
	return s.db.WithContext(ctx).Save(seg).Error
}

// DeleteNetworkSegment hard-deletes the row, the handler's final
// DBDelete step.
func (s *GORMStore) DeleteNetworkSegment(ctx context.Context, id string) error {
	return deleteByField[NetworkSegment](s.db, ctx, "id", id, ErrNetworkSegmentNotFound)
}

func (t *Tx) GetNetworkSegment(ctx context.Context, id string) (*NetworkSegment, error) {
	return getByField[NetworkSegment](t.db, ctx, "id", id, ErrNetworkSegmentNotFound)
}

func (t *Tx) SaveNetworkSegment(ctx context.Context, seg *NetworkSegment) error {
	return t.db.WithContext(ctx).Save(seg).Error
}

func (t *Tx) DeleteNetworkSegment(ctx context.Context, id string) error {
	return deleteByField[NetworkSegment](t.db, ctx, "id", id, ErrNetworkSegmentNotFound)
}
