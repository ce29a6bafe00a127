package tlb

// Priv is the effective privilege of an access.
type Priv int

const (
	// PrivUser is user-mode privilege.
	PrivUser Priv = iota
	// PrivSupervisor is supervisor-mode privilege. Walker-initiated and
	// passthrough accesses are always checked at this level.
	PrivSupervisor
)

// WalkRequest asks the external page-table walker to resolve a miss.
type WalkRequest struct {
	// VPN is the faulting virtual page number.
	VPN uint64
}

// PTE carries the software permissions the walker resolved. The walker is
// expected to have folded accessed/dirty bookkeeping into R/W/X already.
type PTE struct {
	PPN   uint64
	Valid bool
	R     bool
	W     bool
	X     bool
	U     bool
	G     bool
}

// WalkResponse is the walker's answer to a WalkRequest. A response with
// AccessError set, or with a permissionless PTE, is still installed so that
// repeated faulting accesses do not walk again.
type WalkResponse struct {
	PTE PTE

	// AccessError marks a walk that failed because a page-table access
	// was itself illegal.
	AccessError bool

	// Level is the page-table depth at which the walk terminated.
	// Anything above PgLevels-1 denotes a superpage mapping.
	Level int

	// Homogeneous reports whether the whole mapped span has uniform
	// address-map properties.
	Homogeneous bool

	// FragmentedSuperpage marks a superpage mapping returned at base-page
	// granularity; its true extent is unknown to the cache and it must be
	// invalidated conservatively.
	FragmentedSuperpage bool
}

// Walker resolves TLB misses against the backing page tables.
type Walker interface {
	Walk(req WalkRequest) WalkResponse
}

// RegionProps are the fast per-address properties of an address-map region.
type RegionProps struct {
	SupportsRead          bool
	SupportsWrite         bool
	SupportsExclusive     bool
	Executable            bool
	SupportsPartialWrite  bool
	SupportsArithmeticAMO bool
	SupportsLogicalAMO    bool
	HasSideEffects        bool
	Cacheable             bool
}

// AddressMap answers physical-address legality queries.
type AddressMap interface {
	// Lookup returns the properties of the region claiming paddr, and
	// whether any region claims it at all.
	Lookup(paddr uint64) (RegionProps, bool)

	// Homogeneous reports whether every address in the size-aligned block
	// rooted at paddr shares identical properties.
	Homogeneous(paddr, size uint64) bool
}

// Perms is the result of a platform protection query.
type Perms struct {
	R bool
	W bool
	X bool
}

// ProtectionChecker is the fine-grained physical-memory-protection unit.
type ProtectionChecker interface {
	// Permits returns read/write/execute legality for the whole range
	// [paddr, paddr+size) at the given privilege.
	Permits(paddr, size uint64, priv Priv) Perms

	// Homogeneous reports whether protection is uniform across the
	// size-aligned block rooted at paddr.
	Homogeneous(paddr, size uint64) bool
}
