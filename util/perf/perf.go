package perf

import (
	"fmt"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"

	db "cswitch/debug"
)

//
// OS accounting of context switches. The kernel counts a voluntary
// switch each time a thread blocks (e.g., in read on an empty pipe) and
// an involuntary one each time it is preempted.
//

type Tswitches struct {
	Voluntary   int64
	Involuntary int64
}

func (s Tswitches) String() string {
	return fmt.Sprintf("{vcsw %d ivcsw %d}", s.Voluntary, s.Involuntary)
}

func (s Tswitches) Sub(s0 Tswitches) Tswitches {
	return Tswitches{
		Voluntary:   s.Voluntary - s0.Voluntary,
		Involuntary: s.Involuntary - s0.Involuntary,
	}
}

func getrusage(who int) (Tswitches, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(who, &ru); err != nil {
		return Tswitches{}, err
	}
	return Tswitches{Voluntary: int64(ru.Nvcsw), Involuntary: int64(ru.Nivcsw)}, nil
}

// ThreadSwitches returns the counters of the calling OS thread; the
// goroutine should be locked to its thread.
func ThreadSwitches() (Tswitches, error) {
	return getrusage(unix.RUSAGE_THREAD)
}

// SelfSwitches returns the counters of the whole calling process.
func SelfSwitches() (Tswitches, error) {
	return getrusage(unix.RUSAGE_SELF)
}

// ExitedSwitches returns the counters of a child that has been waited
// for.
func ExitedSwitches(ps *os.ProcessState) (Tswitches, bool) {
	if ps == nil {
		return Tswitches{}, false
	}
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return Tswitches{}, false
	}
	return Tswitches{Voluntary: int64(ru.Nvcsw), Involuntary: int64(ru.Nivcsw)}, true
}

// ProcSwitches reads the process-wide counters of pid from /proc.
func ProcSwitches(pid int) (Tswitches, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Tswitches{}, err
	}
	st, err := p.NumCtxSwitches()
	if err != nil {
		db.DPrintf(db.PERF, "NumCtxSwitches %d err %v", pid, err)
		return Tswitches{}, err
	}
	return Tswitches{Voluntary: st.Voluntary, Involuntary: st.Involuntary}, nil
}
