// Package mmu combines the TLB, a page-table walker and a latency model into
// a cycle-counting translation path.
package mmu

import (
	"fmt"

	"github.com/sarchlab/rvmmu/timing/latency"
	"github.com/sarchlab/rvmmu/tlb"
)

// AccessResult contains the outcome of one translation.
type AccessResult struct {
	// Hit is true when the first probe translated without a refill.
	Hit bool

	// Latency is the number of cycles the translation took.
	Latency uint64

	// PAddr is the translated physical address.
	PAddr uint64

	// Resp is the full TLB response of the final probe.
	Resp tlb.Response
}

// Statistics accumulates translation-path counters.
type Statistics struct {
	Accesses     uint64
	Hits         uint64
	Misses       uint64
	Walks        uint64
	PageFaults   uint64
	AccessErrors uint64
	Flushes      uint64
	Cycles       uint64
}

// HitRate returns the fraction of accesses served without a refill.
func (s *Statistics) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses)
}

// MMU drives the TLB's refill state machine against a walker, charging
// latencies from the timing table.
type MMU struct {
	tlb    *tlb.TLB
	walker tlb.Walker
	table  *latency.Table

	stats Statistics
}

// New builds an MMU over an existing TLB and walker.
func New(t *tlb.TLB, walker tlb.Walker, table *latency.Table) *MMU {
	return &MMU{
		tlb:    t,
		walker: walker,
		table:  table,
	}
}

// TLB exposes the underlying translation cache.
func (m *MMU) TLB() *tlb.TLB { return m.tlb }

// Translate resolves one access, walking on a miss and retrying until the
// probe settles. The multiple-hit anomaly resolves itself within the loop:
// the flush it forces makes the retry a clean miss.
func (m *MMU) Translate(vaddr, size uint64, cmd tlb.Cmd) AccessResult {
	m.stats.Accesses++
	req := tlb.Request{VAddr: vaddr, Size: size, Cmd: cmd}

	lat := m.table.Lookup()
	resp := m.tlb.Lookup(req)
	hit := !resp.Miss
	if hit {
		m.stats.Hits++
	} else {
		m.stats.Misses++
	}

	for attempt := 0; resp.Miss; attempt++ {
		if attempt > 4 {
			panic(fmt.Sprintf("mmu: translation of %#x does not settle", vaddr))
		}
		if wreq, ok := m.tlb.PendingWalk(); ok {
			m.tlb.WalkAccepted()
			wrsp := m.walker.Walk(wreq)
			m.stats.Walks++
			lat += m.table.Walk(wrsp.Level + 1)
			m.tlb.CompleteWalk(wrsp)
		}
		lat += m.table.Lookup()
		resp = m.tlb.Lookup(req)
	}

	if resp.PF.Ld || resp.PF.St || resp.PF.Inst {
		m.stats.PageFaults++
	}
	if resp.AE.Ld || resp.AE.St || resp.AE.Inst {
		m.stats.AccessErrors++
	}
	m.stats.Cycles += lat

	return AccessResult{
		Hit:     hit,
		Latency: lat,
		PAddr:   resp.PAddr,
		Resp:    resp,
	}
}

// Flush applies an invalidation request.
func (m *MMU) Flush(req tlb.SFenceRequest) {
	m.tlb.SFence(req)
	m.stats.Flushes++
	m.stats.Cycles += m.table.SFence()
}

// Stats returns a copy of the accumulated statistics.
func (m *MMU) Stats() Statistics {
	return m.stats
}

// ResetStats clears the statistics counters.
func (m *MMU) ResetStats() {
	m.stats = Statistics{}
}
