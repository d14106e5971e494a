package benchmarks

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"cswitch/config"
	db "cswitch/debug"
	"cswitch/util/perf"
)

// Summary of all trials of one model.
type Summary struct {
	Model   string
	Trials  []*Result
	Results *Results
}

// PerSwitch is the mean per-switch cost across trials, in microseconds.
func (s *Summary) PerSwitch() (float64, error) {
	l, _, err := s.Results.Mean()
	return l, err
}

func (s *Summary) log() {
	if !db.WillBePrinted(db.BENCH) {
		return
	}
	sum, err := s.Results.Summary()
	if err != nil {
		db.DPrintf(db.BENCH_ERR, "%v summary err %v", s.Model, err)
		return
	}
	var p, q int64
	var sw int64
	for _, r := range s.Trials {
		q += r.Primary.Voluntary
		p += r.Secondary.Voluntary
		sw += int64(r.N)
	}
	db.DPrintf(db.BENCH, "[%v] %v\n Round trips: %v\n Voluntary switches: primary %v secondary %v",
		s.Model, sum, humanize.Comma(sw), humanize.Comma(q), humanize.Comma(p))
}

// Estimator runs every model's phase, trial by trial, and reports one
// average per model.
type Estimator struct {
	cfg    *config.Config
	models []Tmodel
	phase  func(m Tmodel) *Phase
}

func NewEstimator(cfg *config.Config) *Estimator {
	e := &Estimator{cfg: cfg, models: Models()}
	e.phase = func(m Tmodel) *Phase {
		return NewPhase(cfg, m)
	}
	return e
}

// SetPhase replaces how a model's phase is constructed.
func (e *Estimator) SetPhase(f func(m Tmodel) *Phase) {
	e.phase = f
}

func (e *Estimator) SetModels(ms []Tmodel) {
	e.models = ms
}

// Run writes one line per model to out. The first failing phase stops the
// run; no line is written for it or for any later model.
func (e *Estimator) Run(out io.Writer) ([]*Summary, error) {
	db.DPrintf(db.BENCH, "Run %v", e.cfg)
	sums := make([]*Summary, 0, len(e.models))
	for _, m := range e.models {
		s, err := e.runModel(m)
		if err != nil {
			return sums, err
		}
		us, err := s.PerSwitch()
		if err != nil {
			return sums, err
		}
		if _, err := fmt.Fprintf(out, "[%v] Avg Context Switch: %.3f us\n", m.Name, us); err != nil {
			return sums, err
		}
		s.log()
		sums = append(sums, s)
	}
	return sums, nil
}

func (e *Estimator) runModel(m Tmodel) (*Summary, error) {
	ntrial := e.cfg.Bench.TRIALS
	s := &Summary{
		Model:   m.Name,
		Trials:  make([]*Result, 0, ntrial),
		Results: NewResults(ntrial),
	}
	for i := 0; i < ntrial; i++ {
		s0, err0 := perf.ProcSwitches(os.Getpid())
		r, err := e.phase(m).Run()
		if err != nil {
			return nil, err
		}
		if s1, err1 := perf.ProcSwitches(os.Getpid()); err0 == nil && err1 == nil {
			db.DPrintf(db.SWITCHES, "[%v] trial %d process-wide switches %v", m.Name, i, s1.Sub(s0))
		}
		s.Trials = append(s.Trials, r)
		s.Results.Append(r.Elapsed, float64(r.N))
	}
	return s, nil
}
