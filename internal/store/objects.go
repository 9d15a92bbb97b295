package store

import "context"

// GetObject implements Reader.
func (s *GORMStore) GetObject(ctx context.Context, id string) (*Object, error) {
	return getByField[Object](s.db, ctx, "id", id, ErrObjectNotFound)
}

// ListObjectsByKind implements Reader.
func (s *GORMStore) ListObjectsByKind(ctx context.Context, kind string) ([]*Object, error) {
	return listByField[Object](s.db, ctx, "kind", kind)
}

// UpsertObject implements Transactional. It creates the object if it
// doesn't exist yet, otherwise saves every column including
// StateVersion — callers are responsible for bumping StateVersion
// themselves so a stale write can be detected by the caller comparing
// before/after, since GORM's Save has no built-in optimistic lock.
func (s *GORMStore) UpsertObject(ctx context.Context, obj *Object) error {
	return s.db.WithContext(ctx).Save(obj).Error
}

// RecordHistory implements Transactional.
func (s *GORMStore) RecordHistory(ctx context.Context, h *ObjectHistory) error {
	return s.db.WithContext(ctx).Create(h).Error
}

// DeleteObject implements Transactional.
func (s *GORMStore) DeleteObject(ctx context.Context, id string) error {
	return deleteByField[Object](s.db, ctx, "id", id, ErrObjectNotFound)
}

// GetObject on a transaction handle, for use from inside
// WithTransaction/Savepoint callbacks.
func (t *Tx) GetObject(ctx context.Context, id string) (*Object, error) {
	return getByField[Object](t.db, ctx, "id", id, ErrObjectNotFound)
}

// UpsertObject on a transaction handle.
func (t *Tx) UpsertObject(ctx context.Context, obj *Object) error {
	return t.db.WithContext(ctx).Save(obj).Error
}

// RecordHistory on a transaction handle.
func (t *Tx) RecordHistory(ctx context.Context, h *ObjectHistory) error {
	return t.db.WithContext(ctx).Create(h).Error
}

// DeleteObject on a transaction handle.
func (t *Tx) DeleteObject(ctx context.Context, id string) error {
	return deleteByField[Object](t.db, ctx, "id", id, ErrObjectNotFound)
}
