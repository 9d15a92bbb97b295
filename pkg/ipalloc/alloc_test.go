package ipalloc

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/nvidia/carbide-core/internal/store"
)

func TestAllocateAllPersistsInstanceAddress(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	resolver := &UsedOverlayNetworkIpResolver{SegmentID: "seg-1"}
	var results []Result
	err := st.WithTransaction(ctx, func(tx *store.Tx) error {
		if err := tx.LockInstanceAddressesTable(ctx); err != nil {
			return err
		}
		results = AllocateAll(ctx, tx, resolver, StrategyNextAvailableIp, []Request{{
			PrefixID:  "prefix-1",
			Prefix:    netip.MustParsePrefix("10.2.0.0/24"),
			Size:      32,
			SegmentID: "seg-1",
		}})
		return results[0].Err
	})
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if results[0].Assigned.Addr().String() != "10.2.0.1" {
		t.Fatalf("expected 10.2.0.1, got %s", results[0].Assigned)
	}

	rows, err := st.ListInstanceAddresses(ctx, "seg-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the allocation to persist one instance_addresses row, got %d", len(rows))
	}
	if rows[0].Address != "10.2.0.1/32" {
		t.Errorf("expected persisted address 10.2.0.1/32, got %s", rows[0].Address)
	}
}

// TestAllocateAllSecondCallAdvancesPastFirst is a regression test: a
// call that never persists what it assigned would hand out the same
// "next available" address every time it's invoked.
func TestAllocateAllSecondCallAdvancesPastFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	allocate := func() netip.Prefix {
		resolver := &UsedOverlayNetworkIpResolver{SegmentID: "seg-1"}
		var results []Result
		err := st.WithTransaction(ctx, func(tx *store.Tx) error {
			if err := tx.LockInstanceAddressesTable(ctx); err != nil {
				return err
			}
			results = AllocateAll(ctx, tx, resolver, StrategyNextAvailableIp, []Request{{
				PrefixID:  "prefix-1",
				Prefix:    netip.MustParsePrefix("10.3.0.0/24"),
				Size:      32,
				SegmentID: "seg-1",
			}})
			return results[0].Err
		})
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		return results[0].Assigned
	}

	first := allocate()
	second := allocate()
	if first == second {
		t.Fatalf("expected the second allocation to advance past the first, both got %s", first)
	}
	if second.Addr().String() != "10.3.0.2" {
		t.Errorf("expected the second allocation to be 10.3.0.2, got %s", second.Addr())
	}
}

// TestAllocateAllSavepointIsolatesExhaustedPrefix is a regression test
// for the per-request savepoint: one prefix running out of room must
// not roll back an earlier request's successful allocation within the
// same AllocateAll call.
func TestAllocateAllSavepointIsolatesExhaustedPrefix(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	resolver := &UsedOverlayNetworkIpResolver{SegmentID: "seg-1"}
	var results []Result
	err := st.WithTransaction(ctx, func(tx *store.Tx) error {
		if err := tx.LockInstanceAddressesTable(ctx); err != nil {
			return err
		}
		results = AllocateAll(ctx, tx, resolver, StrategyNextAvailableIp, []Request{
			{PrefixID: "prefix-ok", Prefix: netip.MustParsePrefix("10.4.0.0/24"), Size: 32, SegmentID: "seg-1"},
			{PrefixID: "prefix-exhausted", Prefix: netip.MustParsePrefix("10.4.1.0/30"), Size: 32, SegmentID: "seg-1", NumReserved: 2},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	if results[0].Err != nil {
		t.Fatalf("expected the first request to succeed, got %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrResourceExhausted) {
		t.Fatalf("expected the second request to be exhausted, got %v", results[1].Err)
	}

	rows, err := st.ListInstanceAddresses(ctx, "seg-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the first request's allocation to survive the second request's exhaustion, got %d rows", len(rows))
	}
}
