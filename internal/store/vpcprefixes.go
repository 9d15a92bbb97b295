package store

import "context"

// GetVpcPrefix implements Reader.
func (s *GORMStore) GetVpcPrefix(ctx context.Context, id string) (*VpcPrefix, error) {
	return getByField[VpcPrefix](s.db, ctx, "id", id, ErrVpcPrefixNotFound)
}

// GetVpcPrefixWithRowLock loads a VpcPrefix row with FOR NO KEY UPDATE,
// so concurrent readers of other columns aren't blocked while the
// version counter is bumped — mirrors get_by_id_with_row_lock in
// original_source's vpc_prefix.rs.
func (t *Tx) GetVpcPrefixWithRowLock(ctx context.Context, id string) (*VpcPrefix, error) {
	if t.db.Dialector.Name() == "postgres" {
		var p VpcPrefix
		if err := t.db.WithContext(ctx).Raw(`SELECT * FROM vpc_prefixes WHERE id = ? FOR NO KEY UPDATE`, id).Scan(&p).Error; err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, ErrVpcPrefixNotFound
		}
		return &p, nil
	}
	return getByField[VpcPrefix](t.db, ctx, "id", id, ErrVpcPrefixNotFound)
}

// SaveVpcPrefix persists every column, bumping Version the way
// persist()/increment_vpc_version does in the original.
func (t *Tx) SaveVpcPrefix(ctx context.Context, p *VpcPrefix) error {
	p.Version++
	return t.db.WithContext(ctx).Save(p).Error
}

// ListVpcPrefixesByVpc implements the find_by_vpc query.
func (s *GORMStore) ListVpcPrefixesByVpc(ctx context.Context, vpcID string) ([]*VpcPrefix, error) {
	return listByField[VpcPrefix](s.db, ctx, "vpc_id", vpcID)
}
