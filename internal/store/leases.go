package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// AcquireLease implements invariant I1 (mutual exclusion per object):
// it inserts a lease row if none exists, or takes over an expired one,
// failing with ErrLeaseHeldByOther if a live lease belongs to a
// different owner. The whole check-and-set runs inside one
// transaction so concurrent controller processes can't both succeed.
func (s *GORMStore) AcquireLease(ctx context.Context, kind, id, owner string, ttl time.Duration) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Lease
		err := tx.Where("object_kind = ? AND object_id = ?", kind, id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&Lease{
				ObjectKind: kind,
				ObjectID:   id,
				Owner:      owner,
				AcquiredAt: now,
				ExpiresAt:  now.Add(ttl),
			}).Error
		case err != nil:
			return err
		}

		if existing.Owner != owner && existing.ExpiresAt.After(now) {
			return ErrLeaseHeldByOther
		}

		existing.Owner = owner
		existing.AcquiredAt = now
		existing.ExpiresAt = now.Add(ttl)
		return tx.Save(&existing).Error
	})
}

// ReleaseLease deletes the lease row for (kind, id) if still owned by
// owner; releasing a lease you no longer hold is not an error, since
// the lease may have already expired and been taken over.
func (s *GORMStore) ReleaseLease(ctx context.Context, kind, id, owner string) error {
	return s.db.WithContext(ctx).
		Where("object_kind = ? AND object_id = ? AND owner = ?", kind, id, owner).
		Delete(&Lease{}).Error
}

// GetLease returns the current lease for (kind, id), or
// ErrLeaseNotFound.
func (s *GORMStore) GetLease(ctx context.Context, kind, id string) (*Lease, error) {
	var l Lease
	if err := s.db.WithContext(ctx).
		Where("object_kind = ? AND object_id = ?", kind, id).
		First(&l).Error; err != nil {
		return nil, convertNotFoundError(err, ErrLeaseNotFound)
	}
	return &l, nil
}
