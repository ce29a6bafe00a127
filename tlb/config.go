// Package tlb models a sectored, superpage-capable translation lookaside
// buffer: entry storage, hit detection, permission and fault derivation,
// pseudo-LRU replacement, the multi-stage refill state machine that talks to
// an external page-table walker, and the sfence invalidation protocol.
//
// The model is purely logical. One call to Lookup corresponds to one cycle's
// combinational evaluation; refills span multiple calls through the explicit
// state machine (PendingWalk / WalkAccepted / CompleteWalk).
package tlb

import "fmt"

// Fixed RISC-V style paging parameters.
const (
	// PgIdxBits is the number of page-offset bits (4 KiB base pages).
	PgIdxBits = 12

	// PageLevelBits is the number of virtual-page-number bits translated
	// by each page-table level.
	PageLevelBits = 9

	// PageBytes is the base page size in bytes.
	PageBytes = 1 << PgIdxBits
)

// Config holds the structural parameters of a TLB.
type Config struct {
	// NSets is the number of sectored sets. Must be a power of two.
	NSets int `json:"n_sets"`

	// NWays is the total number of sectored base-page mappings per set.
	// Must be a multiple of NSectors; NWays/NSectors tagged entries are
	// kept per set. Default: 32.
	NWays int `json:"n_ways"`

	// NSectors is the number of base-page sub-slots sharing one tag.
	// Must be a power of two. Default: 4.
	NSectors int `json:"n_sectors"`

	// NSuperpageEntries is the number of fully associative superpage
	// slots. Default: 4.
	NSuperpageEntries int `json:"n_superpage_entries"`

	// PgLevels is the number of page-table levels (3 for Sv39).
	PgLevels int `json:"pg_levels"`

	// VAddrBits is the virtual address width. When it exceeds
	// PgIdxBits+PgLevels*PageLevelBits, the extra high bits must be a
	// sign extension of the translatable part or the access page-faults.
	VAddrBits int `json:"vaddr_bits"`

	// PAddrBits is the physical address width.
	PAddrBits int `json:"paddr_bits"`

	// UsingVM enables translation at all. When false every request is an
	// identity mapping checked only against the platform.
	UsingVM bool `json:"using_vm"`

	// FineGrainedProtection marks platforms whose protection checker can
	// subdivide a page. Such platforms carry one extra "special" entry
	// that caches mappings whose protection is not homogeneous across the
	// page; its platform attributes are recomputed on every lookup.
	FineGrainedProtection bool `json:"fine_grained_protection"`

	// UncachedLRSC permits load-reserved/store-conditional to regions
	// that are not cacheable. Default: false.
	UncachedLRSC bool `json:"uncached_lrsc"`

	// MaxAccessBytes is the largest request size accepted. Default: 8.
	MaxAccessBytes int `json:"max_access_bytes"`
}

// DefaultConfig returns a 32-entry, 4-sector Sv39 configuration.
func DefaultConfig() Config {
	return Config{
		NSets:             1,
		NWays:             32,
		NSectors:          4,
		NSuperpageEntries: 4,
		PgLevels:          3,
		VAddrBits:         39,
		PAddrBits:         56,
		UsingVM:           true,
		MaxAccessBytes:    8,
	}
}

// Validate reports whether the configuration is structurally sound.
func (c *Config) Validate() error {
	if !isPow2(c.NSets) {
		return fmt.Errorf("n_sets must be a power of two, got %d", c.NSets)
	}
	if !isPow2(c.NSectors) {
		return fmt.Errorf("n_sectors must be a power of two, got %d", c.NSectors)
	}
	if c.NWays <= 0 || c.NWays%c.NSectors != 0 {
		return fmt.Errorf("n_ways (%d) must be a positive multiple of n_sectors (%d)",
			c.NWays, c.NSectors)
	}
	if !isPow2(c.NWays / c.NSectors) {
		return fmt.Errorf("n_ways/n_sectors must be a power of two, got %d",
			c.NWays/c.NSectors)
	}
	if !isPow2(c.NSuperpageEntries) {
		return fmt.Errorf("n_superpage_entries must be a power of two, got %d",
			c.NSuperpageEntries)
	}
	if c.PgLevels < 2 || c.PgLevels > 5 {
		return fmt.Errorf("pg_levels must be between 2 and 5, got %d", c.PgLevels)
	}
	if c.VAddrBits < PgIdxBits+c.PgLevels*PageLevelBits {
		return fmt.Errorf("vaddr_bits (%d) too small for %d page levels",
			c.VAddrBits, c.PgLevels)
	}
	if c.PAddrBits <= PgIdxBits || c.PAddrBits > 64 {
		return fmt.Errorf("paddr_bits must be in (%d, 64], got %d", PgIdxBits, c.PAddrBits)
	}
	if c.MaxAccessBytes <= 0 || !isPow2(c.MaxAccessBytes) {
		return fmt.Errorf("max_access_bytes must be a positive power of two, got %d",
			c.MaxAccessBytes)
	}
	return nil
}

// vpnBits is the width of the translatable virtual page number.
func (c *Config) vpnBits() int { return c.PgLevels * PageLevelBits }

// ppnBits is the width of a physical page number.
func (c *Config) ppnBits() int { return c.PAddrBits - PgIdxBits }

// sectorBits is the number of low VPN bits selecting a sector.
func (c *Config) sectorBits() int { return log2(c.NSectors) }

// entriesPerSet is the number of tagged sectored entries in one set.
func (c *Config) entriesPerSet() int { return c.NWays / c.NSectors }

// vpn extracts the translatable virtual page number of an address.
func (c *Config) vpn(vaddr uint64) uint64 {
	return (vaddr >> PgIdxBits) & mask(c.vpnBits())
}

// canonical reports whether the bits of vaddr above the translatable range
// are a sign extension of its top translatable bit.
func (c *Config) canonical(vaddr uint64) bool {
	usable := PgIdxBits + c.vpnBits()
	if c.VAddrBits <= usable {
		return true
	}
	ext := (vaddr >> (usable - 1)) & mask(c.VAddrBits-usable+1)
	return ext == 0 || ext == mask(c.VAddrBits-usable+1)
}

// LevelSpanBytes is the number of bytes mapped by a leaf at the given level
// (level 0 is the root, PgLevels-1 the deepest).
func (c *Config) LevelSpanBytes(level int) uint64 {
	return 1 << uint(PgIdxBits+(c.PgLevels-1-level)*PageLevelBits)
}

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

func log2(n int) int {
	b := 0
	for n > 1 {
		n >>= 1
		b++
	}
	return b
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (1 << uint(bits)) - 1
}
