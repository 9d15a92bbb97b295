package store

import "context"

// ListNetworkPrefixes implements Reader.
func (s *GORMStore) ListNetworkPrefixes(ctx context.Context, segmentID string) ([]*NetworkPrefix, error) {
	return listByField[NetworkPrefix](s.db, ctx, "segment_id", segmentID)
}

// CreateNetworkPrefix persists a new prefix bound to a segment.
func (s *GORMStore) CreateNetworkPrefix(ctx context.Context, p *NetworkPrefix) (string, error) {
	return createWithID(s.db, ctx, p, func(n *NetworkPrefix, id string) { n.ID = id }, p.ID, ErrObjectAlreadyExists)
}

func (t *Tx) ListNetworkPrefixes(ctx context.Context, segmentID string) ([]*NetworkPrefix, error) {
	return listByField[NetworkPrefix](t.db, ctx, "segment_id", segmentID)
}

// ListNetworkPrefixesByVpc returns every prefix belonging to a segment
// in vpcID, the join original_source's vpc_prefix::update_stats uses
// (via network_prefix::containing_prefixes) to count how many linknet
// sub-prefixes a VPC prefix already has carved out of it.
func (s *GORMStore) ListNetworkPrefixesByVpc(ctx context.Context, vpcID string) ([]*NetworkPrefix, error) {
	var results []*NetworkPrefix
	err := s.db.WithContext(ctx).
		Joins("JOIN network_segments ON network_segments.id = network_prefixes.segment_id").
		Where("network_segments.vpc_id = ?", vpcID).
		Find(&results).Error
	return results, err
}
