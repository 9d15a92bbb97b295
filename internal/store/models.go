// Package store provides the GORM-backed persistence layer for the
// state controller: the generic Object/ObjectHistory/Lease tables the
// State-Handler Framework operates on, plus the network-segment,
// prefix, instance-address, VPC-prefix, and resource-pool tables the
// prefix/IP allocation engine and the network-segment handler use.
package store

import "time"

// AllModels returns every model this package registers with
// AutoMigrate. Keep this list in sync with new tables.
func AllModels() []any {
	return []any{
		&Object{},
		&ObjectHistory{},
		&Lease{},
		&NetworkSegment{},
		&NetworkPrefix{},
		&InstanceAddress{},
		&VpcPrefix{},
		&ResourcePoolEntry{},
	}
}

// Object is the generic row the State-Handler Framework reconciles.
// State and ControllerState are kept as opaque strings/JSON payloads so
// the framework stays parametric over object kind; concrete packages
// like pkg/networksegment layer typed accessors on top.
type Object struct {
	ID              string `gorm:"primaryKey;size:36"`
	Kind            string `gorm:"index;not null;size:64"`
	ControllerState string `gorm:"not null;size:64"`
	StateData       string `gorm:"type:text"` // JSON-encoded domain state
	StateVersion    uint64 `gorm:"not null;default:0"`
	MarkedDeleted   bool   `gorm:"not null;default:false"`
	SlaDeadline     *time.Time
	LastOutcomeKind string `gorm:"size:32"`
	LastOutcomeAt   *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Object) TableName() string { return "objects" }

// ObjectHistory records one transition per finalized iteration:
// the outcome produced and the call site that produced it, the Go
// replacement for Rust's #[track_caller] capture.
type ObjectHistory struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	ObjectID      string `gorm:"index;not null;size:36"`
	ObjectKind    string `gorm:"not null;size:64"`
	FromState     string `gorm:"size:64"`
	ToState       string `gorm:"size:64"`
	OutcomeKind   string `gorm:"not null;size:32"`
	OutcomeReason string `gorm:"type:text"`
	SourceFile    string `gorm:"size:255"`
	SourceLine    int
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (ObjectHistory) TableName() string { return "object_history" }

// Lease is the DB-backed mutual-exclusion claim over (kind, id), the
// concrete enforcement of invariant I1 across multiple controller
// processes.
type Lease struct {
	ObjectKind string    `gorm:"primaryKey;size:64"`
	ObjectID   string    `gorm:"primaryKey;size:36"`
	Owner      string    `gorm:"not null;size:64"`
	AcquiredAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

func (Lease) TableName() string { return "leases" }

// NetworkSegment is the worked-example object kind driven by
// pkg/networksegment.
type NetworkSegment struct {
	ID            string `gorm:"primaryKey;size:36"`
	Name          string `gorm:"not null;size:255"`
	Type          string `gorm:"not null;size:32"` // tenant | host-inband | overlay
	VpcID         string `gorm:"size:36;index"`
	MarkedDeleted bool   `gorm:"not null;default:false"`
	DrainDeleteAt *time.Time
	VlanID        *int16
	VniID         *int32
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (NetworkSegment) TableName() string { return "network_segments" }

// NetworkPrefix is one CIDR block bound to a segment. Host-inband
// segments have exactly one prefix used only to enumerate host
// interfaces; overlay/tenant segments use it as the allocation pool.
type NetworkPrefix struct {
	ID        string `gorm:"primaryKey;size:36"`
	SegmentID string `gorm:"not null;size:36;index"`
	Prefix    string `gorm:"not null;size:64"` // CIDR notation
	Reserved  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (NetworkPrefix) TableName() string { return "network_prefixes" }

// InstanceAddress is one allocated address (or sub-prefix) bound to an
// instance interface. IsSvi marks the segment's own switched virtual
// interface address; it is stored as a row like any other allocation,
// so the allocator skips it the same way it skips every used row.
type InstanceAddress struct {
	ID          string `gorm:"primaryKey;size:36"`
	SegmentID   string `gorm:"not null;size:36;index"`
	PrefixID    string `gorm:"not null;size:36;index"`
	InstanceID  string `gorm:"size:36;index"`
	InterfaceID string `gorm:"size:36"`
	Address     string `gorm:"not null;size:64"` // CIDR notation of the assigned address
	IsSvi       bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (InstanceAddress) TableName() string { return "instance_addresses" }

// VpcPrefix is the VPC-scoped supernet a segment's NetworkPrefix is
// carved from; linknet statistics are derived from LinknetPrefixLen
// against the VPC prefix length.
type VpcPrefix struct {
	ID               string `gorm:"primaryKey;size:36"`
	VpcID            string `gorm:"not null;size:36;index"`
	Prefix           string `gorm:"not null;size:64"`
	LinknetPrefixLen int    `gorm:"not null"` // 31 for IPv4, 127 for IPv6
	LastUsedPrefix   string `gorm:"size:64"`
	Version          uint64 `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (VpcPrefix) TableName() string { return "vpc_prefixes" }

// ResourcePoolEntry is one integer slot (VLAN id or VNI) in a named
// pool, acquired/released by internal/resourcepool under row lock.
type ResourcePoolEntry struct {
	PoolName   string `gorm:"primaryKey;size:64"`
	Value      int64  `gorm:"primaryKey"`
	InUse      bool   `gorm:"not null;default:false;index"`
	AllocatedTo string `gorm:"size:36"`
}

func (ResourcePoolEntry) TableName() string { return "resource_pool_entries" }
