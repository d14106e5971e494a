package worker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"cswitch/channel"
	db "cswitch/debug"
	"cswitch/pingpong"
	"cswitch/util/perf"
)

// Process runs the pinger in a child process: the running binary
// re-executed in child mode, with a private address space and the
// secondary endpoint's descriptors inherited at start.
//
// Child descriptors:
//
//	3 data read   4 data write   5 gate read   6 report write
type Process struct {
	ep     *channel.Endpoint
	n      int
	opts   Opts
	cmd    *exec.Cmd
	report *os.File // parent reads the ready byte and the final counts
	gate   *os.File // parent writes the start byte
	waited bool
}

const (
	CSWCHILD = "CSWCHILD"
	CSWITERS = "CSWITERS"
	CSWCPU   = "CSWCPU"

	READY = 'r'
	GO    = 'g'

	FD_DATA_R   = 3
	FD_DATA_W   = 4
	FD_GATE_R   = 5
	FD_REPORT_W = 6
)

// Final report from child to parent.
type report struct {
	Writes      uint64
	Reads       uint64
	Voluntary   int64
	Involuntary int64
}

func NewProcess(ep *channel.Endpoint, n int, opts Opts) *Process {
	return &Process{ep: ep, n: n, opts: opts}
}

func (p *Process) String() string {
	if p.cmd != nil && p.cmd.Process != nil {
		return fmt.Sprintf("{process %d n %d}", p.cmd.Process.Pid, p.n)
	}
	return fmt.Sprintf("{process n %d}", p.n)
}

func closeAll(fs ...*os.File) {
	for _, f := range fs {
		if f != nil {
			f.Close()
		}
	}
}

func (p *Process) Start() error {
	t := time.Now()
	pn := p.opts.Path
	if pn == "" {
		var err error
		if pn, err = os.Executable(); err != nil {
			p.ep.Close()
			return fmt.Errorf("%w: executable: %w", ErrWorker, err)
		}
	}
	ctl, err := channel.Open("ctl")
	if err != nil {
		p.ep.Close()
		return fmt.Errorf("%w: %w", ErrWorker, err)
	}
	dr, dw, err := p.ep.Files()
	if err != nil {
		ctl.Close()
		return fmt.Errorf("%w: %w", ErrWorker, err)
	}
	// The child reads the gate and writes the report; the parent the
	// reverse.
	kr, kw, _ := ctl.Secondary().Files()
	pr, pw, _ := ctl.Primary().Files()

	cmd := exec.Command(pn)
	cmd.Env = append(os.Environ(),
		CSWCHILD+"=ping",
		CSWITERS+"="+strconv.Itoa(p.n),
		CSWCPU+"="+strconv.Itoa(p.opts.CPU),
	)
	cmd.ExtraFiles = []*os.File{dr, dw, kr, kw}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	// Own process group; killed if the parent thread dies.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}

	err = cmd.Start()
	// The child has its copies; drop the parent's so that a dead child
	// shows up as end-of-file.
	closeAll(dr, dw, kr, kw)
	if err != nil {
		closeAll(pr, pw)
		db.DPrintf(db.WORKER_ERR, "Start %v err %v", pn, err)
		return fmt.Errorf("%w: start %v: %w", ErrWorker, pn, err)
	}
	p.cmd = cmd
	p.report = pr
	p.gate = pw
	db.DPrintf(db.WORKER, "Started %v", p)

	var b [1]byte
	if _, err := io.ReadFull(p.report, b[:]); err != nil || b[0] != READY {
		p.Kill()
		_, werr := p.Wait()
		return fmt.Errorf("%w: child not ready (%v): %v", ErrWorker, err, werr)
	}
	perf.LogSpawnLatency("Process ready", "process", t, perf.TIME_NOT_SET)
	return nil
}

func (p *Process) Release() error {
	if p.gate == nil {
		return fmt.Errorf("%w: process not started or released twice", ErrWorker)
	}
	_, err := p.gate.Write([]byte{GO})
	p.gate.Close()
	p.gate = nil
	if err != nil {
		return fmt.Errorf("%w: release: %w", ErrWorker, err)
	}
	return nil
}

func (p *Process) Kill() {
	db.DPrintf(db.WORKER, "Kill %v", p)
	if p.gate != nil {
		p.gate.Close()
		p.gate = nil
	}
	if p.cmd != nil && p.cmd.Process != nil && !p.waited {
		p.cmd.Process.Kill()
	}
}

func (p *Process) Wait() (pingpong.Counts, error) {
	if p.cmd == nil {
		return pingpong.Counts{}, fmt.Errorf("%w: process not started", ErrWorker)
	}
	if p.waited {
		return pingpong.Counts{}, fmt.Errorf("%w: process waited twice", ErrWorker)
	}
	var r report
	rerr := binary.Read(p.report, binary.LittleEndian, &r)
	p.report.Close()
	if p.gate != nil {
		p.gate.Close()
		p.gate = nil
	}
	werr := p.cmd.Wait()
	p.waited = true
	if s, ok := perf.ExitedSwitches(p.cmd.ProcessState); ok {
		db.DPrintf(db.SWITCHES, "Child %v whole-process switches %v", p, s)
	}
	if werr != nil {
		return pingpong.Counts{}, fmt.Errorf("%w: child: %w", ErrWorker, werr)
	}
	if rerr != nil {
		return pingpong.Counts{}, fmt.Errorf("%w: child report: %w", ErrWorker, rerr)
	}
	return pingpong.Counts{
		Writes:      r.Writes,
		Reads:       r.Reads,
		Voluntary:   r.Voluntary,
		Involuntary: r.Involuntary,
	}, nil
}
