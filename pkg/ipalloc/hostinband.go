package ipalloc

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/nvidia/carbide-core/internal/store"
)

// ErrNoHostInbandCandidate reports that a host-inband segment has no
// existing instance_addresses row whose address falls inside the
// segment's prefix, so there is nothing for the segment to adopt.
var ErrNoHostInbandCandidate = fmt.Errorf("ipalloc: no existing host interface address found in segment prefix")

// PickHostInband implements the host-inband special case of
// provisioning: unlike every other segment type, PAE never assigns a
// fresh address here. Instead the managed host already carries one or
// more interfaces recorded as instance_addresses rows against this
// segment, and the segment simply adopts whichever of those addresses
// already falls inside its own prefix.
//
// original_source's AssignIpsFrom (instance_address.rs) treats more
// than one matching interface as a hard DatabaseError and aborts the
// assignment. spec.md's distillation of that behavior redefines it:
// pick the lowest matching address deterministically and let the
// caller surface a warning instead of failing outright. PickHostInband
// follows spec.md's version — it returns every match's count alongside
// the chosen address so the caller can decide how to report ambiguity.
//
// The returned gateway is the prefix's first usable address (network
// address + 1) at the segment prefix's own mask length, mirroring the
// original's network_prefix.gateway field, which this schema does not
// persist as a column.
func PickHostInband(ctx context.Context, tx *store.Tx, segmentID string, prefix *store.NetworkPrefix) (addr netip.Addr, gateway netip.Prefix, candidateCount int, err error) {
	cidr, err := netip.ParsePrefix(prefix.Prefix)
	if err != nil {
		return netip.Addr{}, netip.Prefix{}, 0, fmt.Errorf("ipalloc: parsing prefix %q: %w", prefix.Prefix, err)
	}

	rows, err := tx.ListInstanceAddressesBySegment(ctx, segmentID)
	if err != nil {
		return netip.Addr{}, netip.Prefix{}, 0, err
	}

	var candidates []netip.Addr
	for _, row := range rows {
		hostAddr, perr := parseHostAddr(row.Address)
		if perr != nil {
			continue
		}
		if cidr.Contains(hostAddr) {
			candidates = append(candidates, hostAddr)
		}
	}
	if len(candidates) == 0 {
		return netip.Addr{}, netip.Prefix{}, 0, ErrNoHostInbandCandidate
	}

	lowest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Less(lowest) {
			lowest = c
		}
	}

	gateway = netip.PrefixFrom(addOffset(cidr.Masked().Addr(), 1), cidr.Bits())
	return lowest, gateway, len(candidates), nil
}
