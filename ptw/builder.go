package ptw

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/rvmmu/tlb"
)

// PagePerms are the software permissions of a mapping being built.
type PagePerms struct {
	R bool
	W bool
	X bool
	U bool
	G bool
}

// TableBuilder constructs radix page tables in physical memory, allocating
// table pages from a bump pointer. Tests, benchmarks and the CLI use it to
// set up address spaces.
type TableBuilder struct {
	storage *mem.Storage
	cfg     tlb.Config
	rootPPN uint64
	nextPPN uint64
}

// NewTableBuilder places the root table at basePPN and allocates further
// tables at the physical pages that follow it.
func NewTableBuilder(storage *mem.Storage, cfg tlb.Config, basePPN uint64) *TableBuilder {
	return &TableBuilder{
		storage: storage,
		cfg:     cfg,
		rootPPN: basePPN,
		nextPPN: basePPN + 1,
	}
}

// Root returns the root table's physical page number.
func (b *TableBuilder) Root() uint64 { return b.rootPPN }

// Map installs a base-page mapping vaddr→paddr.
func (b *TableBuilder) Map(vaddr, paddr uint64, p PagePerms) error {
	return b.mapAt(b.cfg.PgLevels-1, vaddr, paddr, p)
}

// MapSuperpage installs a superpage mapping terminating at the given level
// (0 is the root level). Both addresses must be aligned to the level's span.
func (b *TableBuilder) MapSuperpage(level int, vaddr, paddr uint64, p PagePerms) error {
	if level < 0 || level >= b.cfg.PgLevels {
		return fmt.Errorf("level %d out of range", level)
	}
	span := b.cfg.LevelSpanBytes(level)
	if vaddr%span != 0 || paddr%span != 0 {
		return fmt.Errorf("superpage at level %d needs %#x alignment", level, span)
	}
	return b.mapAt(level, vaddr, paddr, p)
}

func (b *TableBuilder) mapAt(leafLevel int, vaddr, paddr uint64, p PagePerms) error {
	vpn := (vaddr >> tlb.PgIdxBits) & ((1 << uint(b.cfg.PgLevels*tlb.PageLevelBits)) - 1)
	base := b.rootPPN

	for level := 0; level < leafLevel; level++ {
		shift := uint((b.cfg.PgLevels - 1 - level) * tlb.PageLevelBits)
		idx := (vpn >> shift) & ((1 << tlb.PageLevelBits) - 1)
		pteAddr := base<<tlb.PgIdxBits + idx*8

		pte, err := b.readPTE(pteAddr)
		if err != nil {
			return err
		}
		switch {
		case pte.table():
			base = pte.ppn()
		case pte.valid():
			return fmt.Errorf("vaddr %#x already mapped at level %d", vaddr, level)
		default:
			table := b.nextPPN
			b.nextPPN++
			if err := b.writePTE(pteAddr, makePTE(table, pteV)); err != nil {
				return err
			}
			base = table
		}
	}

	shift := uint((b.cfg.PgLevels - 1 - leafLevel) * tlb.PageLevelBits)
	idx := (vpn >> shift) & ((1 << tlb.PageLevelBits) - 1)
	pteAddr := base<<tlb.PgIdxBits + idx*8
	if pte, err := b.readPTE(pteAddr); err != nil {
		return err
	} else if pte.valid() {
		return fmt.Errorf("vaddr %#x already mapped", vaddr)
	}

	flags := pteV | pteA | pteD
	if p.R {
		flags |= pteR
	}
	if p.W {
		flags |= pteW
	}
	if p.X {
		flags |= pteX
	}
	if p.U {
		flags |= pteU
	}
	if p.G {
		flags |= pteG
	}
	return b.writePTE(pteAddr, makePTE(paddr>>tlb.PgIdxBits, flags))
}

func (b *TableBuilder) readPTE(addr uint64) (rawPTE, error) {
	data, err := b.storage.Read(addr, 8)
	if err != nil {
		return 0, fmt.Errorf("reading PTE at %#x: %w", addr, err)
	}
	return rawPTE(binary.LittleEndian.Uint64(data)), nil
}

func (b *TableBuilder) writePTE(addr uint64, pte rawPTE) error {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(pte))
	if err := b.storage.Write(addr, data); err != nil {
		return fmt.Errorf("writing PTE at %#x: %w", addr, err)
	}
	return nil
}
