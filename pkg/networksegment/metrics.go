package networksegment

import (
	"net/netip"

	"github.com/nvidia/carbide-core/internal/store"
)

// SegmentType is the closed set of network segment kinds. Tenant
// segments are provisioned by the tenant-facing control plane, not
// this controller, so the handler skips them for both allocation and
// metrics.
type SegmentType string

const (
	SegmentTypeTenant     SegmentType = "tenant"
	SegmentTypeHostInband SegmentType = "host-inband"
	SegmentTypeOverlay    SegmentType = "overlay"
)

// prefixStats reports how many host addresses prefix can hold in
// total and how many remain unused, mirroring what the original reads
// off ipnetwork::IpNetwork::size() and NetworkPrefix::num_free_ips.
// This schema has no per-prefix reserved-address count column, so
// reservedIPs always reports 0 here; see DESIGN.md.
func prefixStats(prefix *store.NetworkPrefix, usedCount int) (totalIPs, availableIPs, reservedIPs int) {
	cidr, err := netip.ParsePrefix(prefix.Prefix)
	if err != nil {
		return 0, 0, 0
	}
	hostBits := cidr.Addr().BitLen() - cidr.Bits()
	if hostBits < 0 || hostBits >= 32 {
		return 0, 0, 0
	}
	total := 1 << uint(hostBits)
	if cidr.Addr().Is4() && cidr.Bits() < 31 {
		total -= 2 // network + broadcast
	}
	available := total - usedCount
	if available < 0 {
		available = 0
	}
	return total, available, 0
}
