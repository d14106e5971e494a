package benchmarks

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"cswitch/channel"
	"cswitch/config"
	db "cswitch/debug"
	"cswitch/pingpong"
	linuxsched "cswitch/util/linux/sched"
	"cswitch/util/perf"
	"cswitch/worker"
)

var (
	ErrCount = errors.New("iteration count mismatch")
	ErrClock = errors.New("bad elapsed time")
)

// A Tmodel is a way of running the secondary side: the two models differ
// only in how the secondary worker is created.
type Tmodel struct {
	Name string
	New  func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker
}

var (
	THREAD = Tmodel{
		Name: "Thread ",
		New: func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker {
			return worker.NewThread(ep, n, opts)
		},
	}
	PROCESS = Tmodel{
		Name: "Process",
		New: func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker {
			return worker.NewProcess(ep, n, opts)
		},
	}
)

func Models() []Tmodel {
	return []Tmodel{THREAD, PROCESS}
}

type OpenFn func(name string) (*channel.Pair, error)

// Result of one phase.
type Result struct {
	Model     string
	N         int
	Elapsed   time.Duration
	Primary   pingpong.Counts
	Secondary pingpong.Counts
}

func (r *Result) String() string {
	return fmt.Sprintf("{%v n %d elapsed %v %.3fus/switch primary %v secondary %v}",
		r.Model, r.N, r.Elapsed, r.PerSwitch(), r.Primary, r.Secondary)
}

// PerSwitch is the average cost of one iteration in microseconds.
func (r *Result) PerSwitch() float64 {
	return float64(r.Elapsed.Nanoseconds()) / 1000.0 / float64(r.N)
}

// Phase runs one measurement of one model.
type Phase struct {
	cfg    *config.Config
	model  Tmodel
	open   OpenFn
	opts   worker.Opts
	tracer pingpong.Tracer
}

func NewPhase(cfg *config.Config, model Tmodel) *Phase {
	return &Phase{
		cfg:   cfg,
		model: model,
		open:  channel.Open,
		opts:  worker.NewOpts(cfg),
	}
}

func (ph *Phase) SetOpen(open OpenFn) {
	ph.open = open
}

func (ph *Phase) SetOpts(opts worker.Opts) {
	ph.opts = opts
}

// SetTracer observes the primary side's channel operations.
func (ph *Phase) SetTracer(tr pingpong.Tracer) {
	ph.tracer = tr
}

// Run measures one phase. The primary side runs on the calling goroutine,
// locked to its OS thread. The secondary worker is always joined before
// Run returns, and the channel is always released.
func (ph *Phase) Run() (*Result, error) {
	n := ph.cfg.Bench.ITERATIONS
	name := ph.model.Name

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if ph.cfg.Pinned() {
		old, err := linuxsched.PinThread(ph.cfg.Bench.CPU)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", name, err)
		}
		defer linuxsched.Restore(old)
	}

	pair, err := ph.open(name)
	if err != nil {
		db.DPrintf(db.BENCH_ERR, "%v open err %v", name, err)
		return nil, fmt.Errorf("%v: channel: %w", name, err)
	}
	defer pair.Close()

	var start time.Time
	if ph.cfg.Bench.INCLUDE_SPAWN {
		start = time.Now()
	}
	w := ph.model.New(pair.Secondary(), n, ph.opts)
	if err := w.Start(); err != nil {
		db.DPrintf(db.BENCH_ERR, "%v start err %v", name, err)
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	if !ph.cfg.Bench.INCLUDE_SPAWN {
		start = time.Now()
	}
	if err := w.Release(); err != nil {
		ph.abort(pair, w)
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	s0, _ := perf.ThreadSwitches()
	qc, err := pingpong.Pong(pair.Primary(), n, ph.tracer)
	if err != nil {
		db.DPrintf(db.BENCH_ERR, "%v pong err %v", name, err)
		ph.abort(pair, w)
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	s1, _ := perf.ThreadSwitches()
	pc, err := w.Wait()
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	d := s1.Sub(s0)
	qc.Voluntary = d.Voluntary
	qc.Involuntary = d.Involuntary

	if !qc.Complete(n) || !pc.Complete(n) {
		return nil, fmt.Errorf("%w: %v n %d primary %v secondary %v", ErrCount, name, n, qc, pc)
	}
	r := &Result{Model: name, N: n, Elapsed: elapsed, Primary: qc, Secondary: pc}
	if us := r.PerSwitch(); !(us > 0) || math.IsInf(us, 0) {
		return nil, fmt.Errorf("%w: %v %v", ErrClock, name, elapsed)
	}
	db.DPrintf(db.TRIAL, "%v", r)
	return r, nil
}

// abort closes the primary side, so a secondary blocked on the channel
// fails instead of hanging, and joins the secondary.
func (ph *Phase) abort(pair *channel.Pair, w worker.Worker) {
	pair.Primary().Close()
	w.Kill()
	if _, err := w.Wait(); err != nil {
		db.DPrintf(db.BENCH_ERR, "%v abort wait err %v", ph.model.Name, err)
	}
}
