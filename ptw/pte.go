// Package ptw implements an Sv39-style radix page-table walker that resolves
// TLB misses against page tables held in physical memory.
package ptw

// RISC-V page-table-entry flag bits.
const (
	pteV uint64 = 1 << 0
	pteR uint64 = 1 << 1
	pteW uint64 = 1 << 2
	pteX uint64 = 1 << 3
	pteU uint64 = 1 << 4
	pteG uint64 = 1 << 5
	pteA uint64 = 1 << 6
	pteD uint64 = 1 << 7

	ptePPNShift = 10
)

// rawPTE is a 64-bit page-table entry as stored in memory.
type rawPTE uint64

func (p rawPTE) valid() bool	{ return uint64(p)&pteV != 0 }
func (p rawPTE) read() bool	{ return uint64(p)&pteR != 0 }
func (p rawPTE) write() bool	{ return uint64(p)&pteW != 0 }
func (p rawPTE) exec() bool	{ return uint64(p)&pteX != 0 }
func (p rawPTE) user() bool	{ return uint64(p)&pteU != 0 }
func (p rawPTE) global() bool	{ return uint64(p)&pteG != 0 }
func (p rawPTE) accessed() bool	{ return uint64(p)&pteA != 0 }
func (p rawPTE) dirty() bool	{ return uint64(p)&pteD != 0 }

func (p rawPTE) ppn() uint64 { return uint64(p) >> ptePPNShift }

// leaf reports whether the entry terminates the walk.
func (p rawPTE) leaf() bool { return p.valid() && (p.read() || p.exec()) }

// table reports whether the entry points at a next-level table.
func (p rawPTE) table() bool { return p.valid() && !p.read() && !p.write() && !p.exec() }

// malformed catches the reserved write-without-read encoding.
func (p rawPTE) malformed() bool { return p.write() && !p.read() }

func makePTE(ppn uint64, flags uint64) rawPTE {
	return rawPTE(ppn<<ptePPNShift | flags)
}
