// Package resourcepool wraps the store layer's generic integer
// resource pool with typed handles for the two pools the network
// segment handler draws from: VLAN ids and VNIs. It's a thin
// domain-facing layer over internal/store's row-locked acquire/release,
// matching the abstraction level of original_source's
// model::resource_pool::ResourcePool<T> without duplicating its
// locking logic.
package resourcepool

import (
	"context"

	"github.com/nvidia/carbide-core/internal/store"
)

const (
	PoolVlan = "vlan"
	PoolVni  = "vni"
)

// Pool is a named, row-locked integer resource pool.
type Pool struct {
	Name string
}

// Vlan returns the VLAN id pool.
func Vlan() Pool { return Pool{Name: PoolVlan} }

// Vni returns the VNI pool.
func Vni() Pool { return Pool{Name: PoolVni} }

// Acquire claims the lowest free value in the pool for allocatedTo
// (typically the network segment id), returning store.ErrResourcePoolExhausted
// if none remain.
func (p Pool) Acquire(ctx context.Context, tx *store.Tx, allocatedTo string) (int64, error) {
	return tx.AcquireResourcePoolEntry(ctx, p.Name, allocatedTo)
}

// Release returns value to the pool.
func (p Pool) Release(ctx context.Context, tx *store.Tx, value int64) error {
	return tx.ReleaseResourcePoolEntry(ctx, p.Name, value)
}

// VlanRange is the inclusive-exclusive range of valid 802.1Q VLAN ids
// (0 and 4095 are reserved).
const (
	VlanRangeLow  int64 = 1
	VlanRangeHigh int64 = 4095
)

// Seed populates the named pool with every value in [low, high). The
// full 24-bit VNI space is not seeded at once; Seed is called with an
// operator-configured subrange instead.
func Seed(db *store.GORMStore, name string, low, high int64) error {
	return store.SeedResourcePool(db.DB(), name, low, high)
}
