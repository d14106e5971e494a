// Cswbench estimates the cost of a context switch between two threads
// and between two processes by ping-ponging one byte over a pipe pair.
//
// It takes no arguments. Tunables come from the YAML file named by
// CSWCONFIG, diagnostics from the labels in CSWDEBUG (e.g. "BENCH").
package main

import (
	"os"

	"cswitch/benchmarks"
	"cswitch/config"
	db "cswitch/debug"
	"cswitch/worker"
)

func main() {
	// The process phase re-executes this binary as its peer.
	if worker.IsChild() {
		os.Exit(worker.RunChild())
	}
	db.SetName("cswbench")
	if len(os.Args) != 1 {
		db.DFatalf("Usage: %v\nArgs: %v", os.Args[0], os.Args)
	}
	cfg, err := config.Load()
	if err != nil {
		db.DFatalf("Error config: %v", err)
	}
	if _, err := benchmarks.NewEstimator(cfg).Run(os.Stdout); err != nil {
		db.DFatalf("Error benchmark: %v", err)
	}
}
