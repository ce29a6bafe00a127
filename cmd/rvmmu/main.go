// Package main provides the command-line driver for rvmmu: it builds an
// identity-mapped address space, replays a synthetic workload through the
// translation path, and reports hit rates and latencies.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvmmu/benchmarks"
	"github.com/sarchlab/rvmmu/timing/latency"
	"github.com/sarchlab/rvmmu/tlb"
)

var (
	nSets      = flag.Int("sets", 1, "Number of sectored TLB sets")
	nWays      = flag.Int("ways", 32, "Sectored mappings per set")
	nSectors   = flag.Int("sectors", 4, "Sectors per tagged entry")
	nSuper     = flag.Int("super", 4, "Superpage entries")
	nPages     = flag.Int("pages", 128, "Mapped footprint in pages")
	count      = flag.Int("n", 100000, "Accesses per workload")
	pattern    = flag.String("pattern", "all", "Workload: sequential, strided, random, all")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	verbose    = flag.Bool("v", false, "Verbose output")
)

const footprintBase = 0x10000000

func main() {
	flag.Parse()

	cfg := tlb.DefaultConfig()
	cfg.NSets = *nSets
	cfg.NWays = *nWays
	cfg.NSectors = *nSectors
	cfg.NSuperpageEntries = *nSuper

	timing := latency.DefaultTimingConfig()
	if *configPath != "" {
		loaded, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		timing = loaded
	}
	if err := timing.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timing config: %v\n", err)
		os.Exit(1)
	}

	env, err := benchmarks.NewEnvironment(cfg, timing, footprintBase, *nPages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building environment: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("TLB: %d sets x %d ways (%d sectors), %d superpage entries\n",
			cfg.NSets, cfg.NWays, cfg.NSectors, cfg.NSuperpageEntries)
		fmt.Printf("Footprint: %d pages at %#x\n", *nPages, uint64(footprintBase))
	}

	var workloads []benchmarks.Workload
	switch *pattern {
	case "sequential":
		workloads = []benchmarks.Workload{
			benchmarks.Sequential(footprintBase, *nPages, *count)}
	case "strided":
		workloads = []benchmarks.Workload{
			benchmarks.Strided(footprintBase, *nPages, 8, *count)}
	case "random":
		workloads = []benchmarks.Workload{
			benchmarks.Random(footprintBase, *nPages, *count, 1)}
	case "all":
		workloads = benchmarks.StandardWorkloads(footprintBase, *nPages, *count)
	default:
		fmt.Fprintf(os.Stderr, "Unknown pattern %q\n", *pattern)
		os.Exit(1)
	}

	results := make([]benchmarks.Result, 0, len(workloads))
	for _, w := range workloads {
		results = append(results, env.Run(w))
	}
	benchmarks.WriteReport(os.Stdout, results)
}
