// Package vpcprefix computes the read-path linknet statistics for a
// VPC prefix: how many linknet-sized sub-prefixes (/31 for IPv4 per
// RFC 3021, /127 for IPv6 per RFC 6164) it can hold, and how many
// remain available, without enumerating the address space.
//
// Grounded in original_source/crates/api-db/src/vpc_prefix.rs's
// update_stats.
package vpcprefix

import (
	"context"
	"net/netip"

	"github.com/nvidia/carbide-core/internal/store"
)

const (
	linknetPrefixV4 = 31
	linknetPrefixV6 = 127
)

// Stats is the computed linknet capacity of one VpcPrefix.
type Stats struct {
	// TotalLinknetSegments and AvailableLinknetSegments are the
	// family-aware figures: /31 for IPv4, /127 for IPv6.
	TotalLinknetSegments     uint64
	AvailableLinknetSegments uint64

	// Total31Segments and Available31Segments are the legacy
	// IPv4-only fields, kept only for IPv4 prefixes for backwards
	// compatibility, matching what the original keeps alongside the
	// family-aware fields rather than replacing them.
	Total31Segments     uint32
	Available31Segments uint32
	HasLegacyV4Stats    bool
}

// Compute returns the linknet statistics for prefix, counting existing
// sub-prefixes already carved out of it via store (network_prefixes
// joined through network_segments by vpc id).
func Compute(ctx context.Context, s *store.GORMStore, prefix *store.VpcPrefix) (Stats, error) {
	cidr, err := netip.ParsePrefix(prefix.Prefix)
	if err != nil {
		return Stats{}, err
	}

	usedCount, err := usedSubPrefixCount(ctx, s, prefix.VpcID, cidr)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	if cidr.Addr().Is4() {
		st.HasLegacyV4Stats = true
		st.Total31Segments = uint32(saturatingShift(linknetPrefixV4, cidr.Bits(), 32))
		if usedCount < uint64(st.Total31Segments) {
			st.Available31Segments = st.Total31Segments - uint32(usedCount)
		}
	}

	linknetPrefix := linknetPrefixV4
	if !cidr.Addr().Is4() {
		linknetPrefix = linknetPrefixV6
	}
	if linknetPrefix > cidr.Bits() {
		st.TotalLinknetSegments = saturatingShift(linknetPrefix, cidr.Bits(), 64)
		st.AvailableLinknetSegments = saturatingSub(st.TotalLinknetSegments, usedCount)
	}

	return st, nil
}

// saturatingShift computes 2^(linknetPrefix-vpcPrefixLen), saturating
// at the max value representable in outBits (32 for the legacy field,
// 64 for the family-aware field) rather than overflowing, matching the
// original's u64::MAX cap for very large IPv6 VPC prefixes.
func saturatingShift(linknetPrefix, vpcPrefixLen, outBits int) uint64 {
	shift := linknetPrefix - vpcPrefixLen
	if shift <= 0 {
		return 0
	}
	if shift >= outBits {
		return maxForBits(outBits)
	}
	return uint64(1) << uint(shift)
}

func maxForBits(outBits int) uint64 {
	if outBits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(outBits)) - 1
}

func saturatingSub(total, used uint64) uint64 {
	if used >= total {
		return 0
	}
	return total - used
}

// usedSubPrefixCount counts the sub-prefixes network_prefixes already
// holds inside vpcCidr for vpcID, the Go equivalent of
// network_prefix::containing_prefixes.
func usedSubPrefixCount(ctx context.Context, s *store.GORMStore, vpcID string, vpcCidr netip.Prefix) (uint64, error) {
	prefixes, err := s.ListNetworkPrefixesByVpc(ctx, vpcID)
	if err != nil {
		return 0, err
	}

	var count uint64
	for _, p := range prefixes {
		cidr, err := netip.ParsePrefix(p.Prefix)
		if err != nil {
			continue
		}
		if cidr.Addr().Is4() != vpcCidr.Addr().Is4() {
			continue
		}
		if vpcCidr.Overlaps(cidr) {
			count++
		}
	}
	return count, nil
}
