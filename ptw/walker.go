package ptw

import (
	"encoding/binary"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/rvmmu/tlb"
)

// Walker resolves virtual page numbers by walking radix page tables stored
// in physical memory. Its own PTE fetches are passthrough accesses: they are
// checked against the address map and protection checker at supervisor
// privilege, and a denied fetch surfaces as an access error that the TLB
// caches like any other walk result.
type Walker struct {
	cfg     tlb.Config
	storage *mem.Storage
	amap    tlb.AddressMap
	prot    tlb.ProtectionChecker
	rootPPN uint64

	splitSuperpages bool
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithSplitSuperpages makes the walker return superpage leaves at base-page
// granularity, flagged as fragmented, for TLBs that cannot hold the
// superpage whole.
func WithSplitSuperpages() WalkerOption {
	return func(w *Walker) {
		w.splitSuperpages = true
	}
}

// NewWalker builds a walker over the given physical memory.
func NewWalker(cfg tlb.Config, storage *mem.Storage, amap tlb.AddressMap,
	prot tlb.ProtectionChecker, opts ...WalkerOption) *Walker {
	w := &Walker{
		cfg:     cfg,
		storage: storage,
		amap:    amap,
		prot:    prot,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetRoot points the walker at the root page table.
func (w *Walker) SetRoot(ppn uint64) { w.rootPPN = ppn }

// Walk resolves one request. Every outcome is a response: failures come back
// as access errors or permissionless PTEs, never as Go errors, so the TLB
// can cache them.
func (w *Walker) Walk(req tlb.WalkRequest) tlb.WalkResponse {
	base := w.rootPPN
	for level := 0; level < w.cfg.PgLevels; level++ {
		shift := uint((w.cfg.PgLevels - 1 - level) * tlb.PageLevelBits)
		idx := (req.VPN >> shift) & ((1 << tlb.PageLevelBits) - 1)
		pteAddr := base<<tlb.PgIdxBits + idx*8

		pte, ok := w.fetchPTE(pteAddr)
		if !ok {
			return accessErrorResponse(level)
		}
		if !pte.valid() || pte.malformed() {
			return pageFaultResponse(level)
		}
		if !pte.leaf() {
			base = pte.ppn()
			continue
		}

		// A superpage leaf must have its low PPN chunks clear.
		if level < w.cfg.PgLevels-1 && pte.ppn()&((1<<shift)-1) != 0 {
			return pageFaultResponse(level)
		}
		return w.leafResponse(req.VPN, level, pte)
	}
	// Deepest level reached without a leaf.
	return pageFaultResponse(w.cfg.PgLevels - 1)
}

// fetchPTE reads one PTE, checking the fetch itself for legality.
func (w *Walker) fetchPTE(pteAddr uint64) (rawPTE, bool) {
	props, legal := w.amap.Lookup(pteAddr)
	if !legal || !props.SupportsRead {
		return 0, false
	}
	if !w.prot.Permits(pteAddr, 8, tlb.PrivSupervisor).R {
		return 0, false
	}
	data, err := w.storage.Read(pteAddr, 8)
	if err != nil {
		return 0, false
	}
	return rawPTE(binary.LittleEndian.Uint64(data)), true
}

func (w *Walker) leafResponse(vpn uint64, level int, pte rawPTE) tlb.WalkResponse {
	ppn := pte.ppn()
	fragmented := false

	if level < w.cfg.PgLevels-1 && w.splitSuperpages {
		// Hand back just the one base page the request touched.
		shift := uint((w.cfg.PgLevels - 1 - level) * tlb.PageLevelBits)
		ppn |= vpn & ((1 << shift) - 1)
		level = w.cfg.PgLevels - 1
		fragmented = true
	}

	// Software-managed accessed/dirty bookkeeping folds into the
	// permissions handed to the TLB: an unaccessed page reads as
	// permissionless, a clean page as read-only.
	r := pte.read() && pte.accessed()
	x := pte.exec() && pte.accessed()
	wr := pte.write() && pte.accessed() && pte.dirty()

	span := w.cfg.LevelSpanBytes(level)
	paddr := (ppn << tlb.PgIdxBits) &^ (span - 1)

	return tlb.WalkResponse{
		PTE: tlb.PTE{
			PPN:   ppn,
			Valid: true,
			R:     r,
			W:     wr,
			X:     x,
			U:     pte.user(),
			G:     pte.global(),
		},
		Level:               level,
		Homogeneous:         w.amap.Homogeneous(paddr, span),
		FragmentedSuperpage: fragmented,
	}
}

func pageFaultResponse(level int) tlb.WalkResponse {
	return tlb.WalkResponse{Level: level, Homogeneous: true}
}

func accessErrorResponse(level int) tlb.WalkResponse {
	return tlb.WalkResponse{AccessError: true, Level: level, Homogeneous: true}
}
