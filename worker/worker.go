// Package worker runs the secondary side of a ping-pong phase. A Worker
// is either a thread in the caller's address space or a child process
// with its own; both follow the same lifecycle:
//
//	Start   create the worker and block until it is ready
//	Release open the start gate; the worker begins pinging
//	Wait    join the worker and collect its counts or its failure
//	Kill    tear the worker down after a failure on the primary side
//
// Wait must be called exactly once after a successful Start, also after
// Kill, so that no thread or process outlives its phase.
package worker

import (
	"errors"

	"cswitch/config"
	"cswitch/pingpong"
)

var (
	ErrWorker = errors.New("worker failed")
	ErrKilled = errors.New("worker killed")
)

type Worker interface {
	Start() error
	Release() error
	Wait() (pingpong.Counts, error)
	Kill()
}

type Opts struct {
	// CPU to pin the worker to, or config.NO_CPU.
	CPU int
	// Executable a process worker runs in child mode; empty means the
	// running binary.
	Path string
	// Observes the thread worker's channel operations.
	Tracer pingpong.Tracer
}

func NewOpts(cfg *config.Config) Opts {
	return Opts{CPU: cfg.Bench.CPU}
}

func (o Opts) pinned() bool {
	return o.CPU != config.NO_CPU
}
