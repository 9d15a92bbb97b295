package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcquireResourcePoolEntry claims the lowest unused value in poolName
// for allocatedTo, using SELECT ... FOR UPDATE (or, on SQLite, the
// database's single-writer serialization) so two concurrent acquires
// never return the same slot — the Go analogue of
// model::resource_pool::ResourcePool<T>'s row-locked acquire.
func (t *Tx) AcquireResourcePoolEntry(ctx context.Context, poolName, allocatedTo string) (int64, error) {
	var entry ResourcePoolEntry
	q := t.db.WithContext(ctx).
		Where("pool_name = ? AND in_use = ?", poolName, false).
		Order("value ASC")
	if t.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrResourcePoolExhausted
		}
		return 0, err
	}

	entry.InUse = true
	entry.AllocatedTo = allocatedTo
	if err := t.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return 0, err
	}
	return entry.Value, nil
}

// ReleaseResourcePoolEntry returns value to poolName, mirroring
// db::resource_pool::release.
func (t *Tx) ReleaseResourcePoolEntry(ctx context.Context, poolName string, value int64) error {
	result := t.db.WithContext(ctx).
		Model(&ResourcePoolEntry{}).
		Where("pool_name = ? AND value = ?", poolName, value).
		Updates(map[string]any{"in_use": false, "allocated_to": ""})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResourceNotAllocated
	}
	return nil
}

// SeedResourcePool ensures the pool has entries for every value in
// [low, high), used once at startup/migration time to populate VLAN
// and VNI ranges.
func SeedResourcePool(db *gorm.DB, poolName string, low, high int64) error {
	for v := low; v < high; v++ {
		entry := ResourcePoolEntry{PoolName: poolName, Value: v}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}
