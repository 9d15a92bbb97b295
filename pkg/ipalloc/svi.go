package ipalloc

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/nvidia/carbide-core/internal/store"
)

// AllocateSvi allocates exactly one host address for a segment's
// switched virtual interface, using the same NextAvailableIp strategy
// and the same ACCESS EXCLUSIVE table lock as any other allocation.
// Grounded in original_source's instance_address::allocate_svi_ip.
func AllocateSvi(ctx context.Context, tx *store.Tx, segmentID string, prefix *store.NetworkPrefix) (netip.Addr, error) {
	if err := tx.LockInstanceAddressesTable(ctx); err != nil {
		return netip.Addr{}, fmt.Errorf("ipalloc: locking instance_addresses: %w", err)
	}

	cidr, err := netip.ParsePrefix(prefix.Prefix)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ipalloc: parsing prefix %q: %w", prefix.Prefix, err)
	}

	resolver := &UsedOverlayNetworkIpResolver{SegmentID: segmentID}
	results := AllocateAll(ctx, tx, resolver, StrategyNextAvailableIp, []Request{{
		PrefixID:  prefix.ID,
		Prefix:    cidr,
		Size:      cidr.Addr().BitLen(), // SVI gets a single host address, not a sub-prefix
		SegmentID: segmentID,
		IsSvi:     true,
	}})

	res := results[0]
	if res.Err != nil {
		return netip.Addr{}, fmt.Errorf("ipalloc: allocating SVI IP for segment %s: %w", segmentID, res.Err)
	}
	return res.HostIP, nil
}
