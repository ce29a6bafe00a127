// Package platform provides the physical-side collaborators of the TLB: the
// address-map legality checker (PMA) and the physical-memory-protection
// checker (PMP).
package platform

import (
	"fmt"
	"sort"

	"github.com/sarchlab/rvmmu/tlb"
)

// Region is one entry of the physical address map.
type Region struct {
	// Name is used in diagnostics only.
	Name string `json:"name"`

	// Base and Size delimit the region [Base, Base+Size).
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`

	// Props are the fast per-address properties of every address in the
	// region.
	Props tlb.RegionProps `json:"props"`
}

func (r Region) contains(paddr uint64) bool {
	return paddr >= r.Base && paddr-r.Base < r.Size
}

// AddressMap is an ordered, non-overlapping list of regions. Addresses no
// region claims are illegal.
type AddressMap struct {
	regions []Region
}

// NewAddressMap builds an address map, rejecting overlapping regions.
func NewAddressMap(regions ...Region) (*AddressMap, error) {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if sorted[i].Base < prev.Base+prev.Size {
			return nil, fmt.Errorf("region %q overlaps %q",
				sorted[i].Name, prev.Name)
		}
	}
	return &AddressMap{regions: sorted}, nil
}

// Lookup returns the properties of the region claiming paddr.
func (m *AddressMap) Lookup(paddr uint64) (tlb.RegionProps, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].Base+m.regions[i].Size > paddr
	})
	if i < len(m.regions) && m.regions[i].contains(paddr) {
		return m.regions[i].Props, true
	}
	return tlb.RegionProps{}, false
}

// Homogeneous reports whether the size-aligned block rooted at paddr lies
// entirely inside one region, so every address in it shares the region's
// properties.
func (m *AddressMap) Homogeneous(paddr, size uint64) bool {
	base := paddr &^ (size - 1)
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].Base+m.regions[i].Size > base
	})
	if i >= len(m.regions) || !m.regions[i].contains(base) {
		// Unclaimed blocks are homogeneous as long as no region
		// starts inside them.
		return i >= len(m.regions) || m.regions[i].Base >= base+size
	}
	r := m.regions[i]
	return base+size <= r.Base+r.Size
}

// MainMemoryProps returns the properties of ordinary cacheable RAM.
func MainMemoryProps() tlb.RegionProps {
	return tlb.RegionProps{
		SupportsRead:          true,
		SupportsWrite:         true,
		SupportsExclusive:     true,
		Executable:            true,
		SupportsPartialWrite:  true,
		SupportsArithmeticAMO: true,
		SupportsLogicalAMO:    true,
		Cacheable:             true,
	}
}

// MMIOProps returns the properties of a side-effecting device region:
// readable and writable, never cached, never executed, no AMOs.
func MMIOProps() tlb.RegionProps {
	return tlb.RegionProps{
		SupportsRead:         true,
		SupportsWrite:        true,
		SupportsPartialWrite: true,
		HasSideEffects:       true,
	}
}

// ROMProps returns the properties of an executable read-only region.
func ROMProps() tlb.RegionProps {
	return tlb.RegionProps{
		SupportsRead: true,
		Executable:   true,
		Cacheable:    true,
	}
}
