package worker

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"cswitch/channel"
	db "cswitch/debug"
	"cswitch/pingpong"
	linuxsched "cswitch/util/linux/sched"
	"cswitch/util/perf"
)

type result struct {
	c   pingpong.Counts
	err error
}

// Thread runs the pinger on a goroutine locked to its own OS thread, so
// every blocking read suspends a kernel thread.
type Thread struct {
	ep    *channel.Endpoint
	n     int
	opts  Opts
	ready chan error
	gate  chan bool
	done  chan result
	once  sync.Once
	res   result
	gated bool
}

func NewThread(ep *channel.Endpoint, n int, opts Opts) *Thread {
	return &Thread{
		ep:    ep,
		n:     n,
		opts:  opts,
		ready: make(chan error, 1),
		gate:  make(chan bool, 1),
		done:  make(chan result, 1),
	}
}

func (th *Thread) String() string {
	return fmt.Sprintf("{thread %v n %d}", th.ep, th.n)
}

func (th *Thread) Start() error {
	t := time.Now()
	go th.run()
	if err := <-th.ready; err != nil {
		th.Wait()
		return fmt.Errorf("%w: thread start: %w", ErrWorker, err)
	}
	perf.LogSpawnLatency("Thread ready", "thread", t, perf.TIME_NOT_SET)
	return nil
}

func (th *Thread) Release() error {
	if th.gated {
		return fmt.Errorf("%w: thread released twice", ErrWorker)
	}
	th.gated = true
	th.gate <- true
	return nil
}

func (th *Thread) Kill() {
	db.DPrintf(db.WORKER, "Kill %v", th)
	if !th.gated {
		th.gated = true
		close(th.gate)
	}
}

func (th *Thread) Wait() (pingpong.Counts, error) {
	th.once.Do(func() {
		th.res = <-th.done
		if th.res.err != nil {
			th.res.err = fmt.Errorf("%w: thread: %w", ErrWorker, th.res.err)
		}
	})
	return th.res.c, th.res.err
}

// The goroutine exits locked to its thread, so the runtime destroys the
// thread rather than reusing one whose affinity was changed.
func (th *Thread) run() {
	runtime.LockOSThread()
	defer th.ep.Close()

	if th.opts.pinned() {
		if _, err := linuxsched.PinThread(th.opts.CPU); err != nil {
			th.ready <- err
			th.done <- result{err: err}
			return
		}
	}
	th.ready <- nil
	if ok := <-th.gate; !ok {
		th.done <- result{err: ErrKilled}
		return
	}
	s0, err := perf.ThreadSwitches()
	if err != nil {
		th.done <- result{err: err}
		return
	}
	c, err := pingpong.Ping(th.ep, th.n, th.opts.Tracer)
	if s1, r := perf.ThreadSwitches(); r == nil {
		d := s1.Sub(s0)
		c.Voluntary = d.Voluntary
		c.Involuntary = d.Involuntary
	}
	if err != nil {
		db.DPrintf(db.WORKER_ERR, "Thread ping err %v", err)
	}
	th.done <- result{c, err}
}
