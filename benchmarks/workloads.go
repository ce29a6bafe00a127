// Package benchmarks provides synthetic access-pattern workloads for
// exercising and calibrating the translation path.
package benchmarks

import (
	"math/rand"

	"github.com/sarchlab/rvmmu/tlb"
)

// Workload is a named stream of virtual accesses.
type Workload struct {
	// Name identifies the workload.
	Name string

	// Description explains what the workload stresses.
	Description string

	// Addrs is the virtual address stream.
	Addrs []uint64

	// Cmd is the access kind used for every address.
	Cmd tlb.Cmd
}

// Sequential touches pages in order, revisiting the footprint repeatedly:
// the friendliest case for a sectored TLB, since neighbouring pages share a
// tag.
func Sequential(base uint64, nPages, count int) Workload {
	addrs := make([]uint64, count)
	for i := range addrs {
		page := uint64(i % nPages)
		addrs[i] = base + page*tlb.PageBytes
	}
	return Workload{
		Name:        "sequential",
		Description: "in-order page sweep, sector-friendly",
		Addrs:       addrs,
		Cmd:         tlb.CmdLoad,
	}
}

// Strided skips through pages at a fixed stride, defeating sector sharing
// once the stride exceeds the sector span.
func Strided(base uint64, nPages, stride, count int) Workload {
	addrs := make([]uint64, count)
	for i := range addrs {
		page := uint64((i * stride) % nPages)
		addrs[i] = base + page*tlb.PageBytes
	}
	return Workload{
		Name:        "strided",
		Description: "fixed-stride page stream",
		Addrs:       addrs,
		Cmd:         tlb.CmdLoad,
	}
}

// Random draws pages uniformly from the footprint; the hit rate approaches
// capacity/footprint once the footprint exceeds the TLB.
func Random(base uint64, nPages, count int, seed int64) Workload {
	rng := rand.New(rand.NewSource(seed))
	addrs := make([]uint64, count)
	for i := range addrs {
		page := uint64(rng.Intn(nPages))
		addrs[i] = base + page*tlb.PageBytes
	}
	return Workload{
		Name:        "random",
		Description: "uniform random page stream",
		Addrs:       addrs,
		Cmd:         tlb.CmdLoad,
	}
}

// StandardWorkloads returns the default calibration set over a footprint of
// nPages starting at base.
func StandardWorkloads(base uint64, nPages, count int) []Workload {
	return []Workload{
		Sequential(base, nPages, count),
		Strided(base, nPages, 8, count),
		Random(base, nPages, count, 1),
	}
}
