package sched

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	db "cswitch/debug"
)

type CPUMask struct {
	set unix.CPUSet
}

func (m *CPUMask) Test(i uint) bool {
	return m.set.IsSet(int(i))
}

func (m *CPUMask) Set(i uint) {
	m.set.Set(int(i))
}

func (m *CPUMask) Count() int {
	return m.set.Count()
}

func (m *CPUMask) String() string {
	s := "["
	for i := uint(0); i < GetNCores(); i++ {
		if m.Test(i) {
			s += fmt.Sprintf(" %d", i)
		}
	}
	return s + " ]"
}

func GetNCores() uint {
	return uint(runtime.NumCPU())
}

// SchedGetAffinity returns the mask of pid. A pid of 0 is the calling
// thread.
func SchedGetAffinity(pid int) (*CPUMask, error) {
	m := &CPUMask{}
	if err := unix.SchedGetaffinity(pid, &m.set); err != nil {
		return nil, err
	}
	return m, nil
}

func SchedSetAffinity(pid int, m *CPUMask) error {
	return unix.SchedSetaffinity(pid, &m.set)
}

// PinThread binds the calling OS thread to cpu and returns the mask it
// had before. The caller must have called runtime.LockOSThread, or the
// goroutine may move off the pinned thread.
func PinThread(cpu int) (*CPUMask, error) {
	old, err := SchedGetAffinity(0)
	if err != nil {
		return nil, fmt.Errorf("getaffinity: %w", err)
	}
	m := &CPUMask{}
	m.Set(uint(cpu))
	if err := SchedSetAffinity(0, m); err != nil {
		return nil, fmt.Errorf("setaffinity cpu %d: %w", cpu, err)
	}
	db.DPrintf(db.AFFINITY, "Pin thread %d to cpu %d, was %v", unix.Gettid(), cpu, old)
	return old, nil
}

// Restore sets the calling thread's mask back to m.
func Restore(m *CPUMask) error {
	if err := SchedSetAffinity(0, m); err != nil {
		return fmt.Errorf("restore affinity %v: %w", m, err)
	}
	return nil
}
