// Package main provides the entry point for rvmmu.
// rvmmu is a logical model of a sectored, superpage-capable TLB and its
// page-table-walk refill path.
//
// For the full CLI, use: go run ./cmd/rvmmu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvmmu - TLB / MMU simulation")
	fmt.Println("")
	fmt.Println("Usage: rvmmu [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -pattern   Workload pattern (sequential, strided, random, all)")
	fmt.Println("  -pages     Mapped footprint in pages")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvmmu' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvmmu' instead.")
	}
}
