package test

import (
	"flag"
	"os"
	"testing"

	"cswitch/config"
	db "cswitch/debug"
	"cswitch/worker"
)

//
// Tests run phases with a small iteration count; use --niter to change
// it and --cpu to pin both sides.
//

var Niter int
var Cpu int
var Trials int

func init() {
	flag.IntVar(&Niter, "niter", 1000, "Ping-pong iterations per phase")
	flag.IntVar(&Cpu, "cpu", config.NO_CPU, "CPU to pin both sides to")
	flag.IntVar(&Trials, "trials", 1, "Trials per phase")
}

// Main is a TestMain for packages whose tests start process workers: the
// test binary is re-executed as the child.
func Main(m *testing.M) {
	if worker.IsChild() {
		os.Exit(worker.RunChild())
	}
	os.Exit(m.Run())
}

type Tstate struct {
	T   *testing.T
	Cfg *config.Config
}

func NewTstate(t *testing.T) *Tstate {
	cfg := config.Default()
	cfg.Bench.ITERATIONS = Niter
	cfg.Bench.CPU = Cpu
	cfg.Bench.TRIALS = Trials
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	db.DPrintf(db.TEST, "Tstate %v", cfg)
	return &Tstate{T: t, Cfg: cfg}
}

func (ts *Tstate) Opts() worker.Opts {
	return worker.NewOpts(ts.Cfg)
}
