package platform

import (
	"fmt"

	"github.com/sarchlab/rvmmu/tlb"
)

// PMPEntry grants read/write/execute rights over [Base, Base+Size).
type PMPEntry struct {
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`
	R    bool   `json:"r"`
	W    bool   `json:"w"`
	X    bool   `json:"x"`
}

// PMP is an ordered physical-memory-protection checker: the first entry
// matching an access decides it. An access partially covered by its deciding
// entry is denied outright. A PMP with no entries permits everything.
type PMP struct {
	entries []PMPEntry
}

// NewPMP builds a protection checker from entries in priority order.
func NewPMP(entries ...PMPEntry) (*PMP, error) {
	for i, e := range entries {
		if e.Size == 0 {
			return nil, fmt.Errorf("pmp entry %d has zero size", i)
		}
	}
	return &PMP{entries: entries}, nil
}

// Permits returns the rights of the first entry overlapping the access
// range. Privilege does not relax matching here: entries bind supervisor and
// user alike.
func (p *PMP) Permits(paddr, size uint64, priv tlb.Priv) tlb.Perms {
	_ = priv
	if len(p.entries) == 0 {
		return tlb.Perms{R: true, W: true, X: true}
	}
	for _, e := range p.entries {
		if paddr+size <= e.Base || paddr >= e.Base+e.Size {
			continue
		}
		if paddr < e.Base || paddr+size > e.Base+e.Size {
			// Straddles the deciding entry's boundary.
			return tlb.Perms{}
		}
		return tlb.Perms{R: e.R, W: e.W, X: e.X}
	}
	return tlb.Perms{R: true, W: true, X: true}
}

// Homogeneous reports whether no entry boundary cuts through the
// size-aligned block rooted at paddr, so the whole block is decided alike.
func (p *PMP) Homogeneous(paddr, size uint64) bool {
	base := paddr &^ (size - 1)
	for _, e := range p.entries {
		if e.Base > base && e.Base < base+size {
			return false
		}
		end := e.Base + e.Size
		if end > base && end < base+size {
			return false
		}
	}
	return true
}

// PageGranular reports whether every entry is aligned to whole pages. A
// platform whose PMP is not page granular needs the TLB's special entry.
func (p *PMP) PageGranular() bool {
	for _, e := range p.entries {
		if e.Base%tlb.PageBytes != 0 || e.Size%tlb.PageBytes != 0 {
			return false
		}
	}
	return true
}
