package store

import "errors"

// Sentinel errors returned by the store layer, mirroring the
// find-or-convert pattern used throughout the control plane store.
var (
	ErrObjectNotFound          = errors.New("object not found")
	ErrObjectAlreadyExists     = errors.New("object already exists")
	ErrLeaseNotFound           = errors.New("lease not found")
	ErrLeaseHeldByOther        = errors.New("lease is held by another owner")
	ErrNetworkSegmentNotFound  = errors.New("network segment not found")
	ErrNetworkPrefixNotFound   = errors.New("network prefix not found")
	ErrInstanceAddressNotFound = errors.New("instance address not found")
	ErrVpcPrefixNotFound       = errors.New("vpc prefix not found")
	ErrResourcePoolExhausted   = errors.New("resource pool exhausted")
	ErrResourceNotAllocated    = errors.New("resource was not allocated")
)
