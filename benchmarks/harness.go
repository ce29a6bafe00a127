package benchmarks

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/rvmmu/platform"
	"github.com/sarchlab/rvmmu/ptw"
	"github.com/sarchlab/rvmmu/timing/latency"
	"github.com/sarchlab/rvmmu/timing/mmu"
	"github.com/sarchlab/rvmmu/tlb"
)

// Result holds the outcome of one workload run.
type Result struct {
	// Name identifies the workload.
	Name string `json:"name"`

	// Accesses is the number of translations issued.
	Accesses uint64 `json:"accesses"`

	// HitRate is the fraction of accesses served without a walk.
	HitRate float64 `json:"hit_rate"`

	// Walks is the number of page-table walks performed.
	Walks uint64 `json:"walks"`

	// AvgLatency is the mean translation latency in cycles.
	AvgLatency float64 `json:"avg_latency"`

	// Faults is the number of accesses that raised any fault.
	Faults uint64 `json:"faults"`
}

// Environment is a ready-to-run translation path over an identity-mapped
// address space.
type Environment struct {
	MMU     *mmu.MMU
	Storage *mem.Storage
	Builder *ptw.TableBuilder
}

// NewEnvironment builds storage, address map, page tables and MMU for a
// footprint of nPages identity-mapped pages starting at base.
func NewEnvironment(cfg tlb.Config, timing *latency.TimingConfig,
	base uint64, nPages int) (*Environment, error) {
	memBytes := base + uint64(nPages+64)*tlb.PageBytes
	storage := mem.NewStorage(memBytes)

	amap, err := platform.NewAddressMap(platform.Region{
		Name:  "dram",
		Base:  0,
		Size:  memBytes,
		Props: platform.MainMemoryProps(),
	})
	if err != nil {
		return nil, fmt.Errorf("building address map: %w", err)
	}
	pmp, err := platform.NewPMP()
	if err != nil {
		return nil, fmt.Errorf("building pmp: %w", err)
	}

	t, err := tlb.New(cfg, amap, pmp)
	if err != nil {
		return nil, fmt.Errorf("building tlb: %w", err)
	}

	// Page tables live in the pages following the mapped footprint.
	tableBase := (base + uint64(nPages)*tlb.PageBytes) >> tlb.PgIdxBits
	builder := ptw.NewTableBuilder(storage, cfg, tableBase)
	for i := 0; i < nPages; i++ {
		va := base + uint64(i)*tlb.PageBytes
		err := builder.Map(va, va, ptw.PagePerms{R: true, W: true, X: true, G: true})
		if err != nil {
			return nil, fmt.Errorf("mapping page %d: %w", i, err)
		}
	}

	walker := ptw.NewWalker(cfg, storage, amap, pmp)
	walker.SetRoot(builder.Root())

	return &Environment{
		MMU:     mmu.New(t, walker, latency.NewTableWithConfig(timing)),
		Storage: storage,
		Builder: builder,
	}, nil
}

// Run replays a workload through the environment and reports on it.
func (e *Environment) Run(w Workload) Result {
	e.MMU.ResetStats()
	for _, addr := range w.Addrs {
		e.MMU.Translate(addr, 8, w.Cmd)
	}
	stats := e.MMU.Stats()
	res := Result{
		Name:     w.Name,
		Accesses: stats.Accesses,
		HitRate:  stats.HitRate(),
		Walks:    stats.Walks,
		Faults:   stats.PageFaults + stats.AccessErrors,
	}
	if stats.Accesses > 0 {
		res.AvgLatency = float64(stats.Cycles) / float64(stats.Accesses)
	}
	return res
}

// WriteReport prints results in a fixed-width table.
func WriteReport(w io.Writer, results []Result) {
	fmt.Fprintf(w, "%-12s %10s %9s %8s %12s %8s\n",
		"workload", "accesses", "hit-rate", "walks", "avg-latency", "faults")
	for _, r := range results {
		fmt.Fprintf(w, "%-12s %10d %8.2f%% %8d %12.2f %8d\n",
			r.Name, r.Accesses, r.HitRate*100, r.Walks, r.AvgLatency, r.Faults)
	}
}
