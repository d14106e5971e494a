package worker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"cswitch/channel"
	"cswitch/config"
	db "cswitch/debug"
	"cswitch/pingpong"
	linuxsched "cswitch/util/linux/sched"
	"cswitch/util/perf"
)

// IsChild reports whether this process was started by a Process worker.
func IsChild() bool {
	return os.Getenv(CSWCHILD) != ""
}

// RunChild is the entry point of a child started by a Process worker
// and returns its exit status. Binaries that start process workers must
// call it before doing anything else when IsChild is true.
func RunChild() int {
	db.SetName(fmt.Sprintf("child-%d", os.Getpid()))
	if err := runChild(); err != nil {
		db.DPrintf(db.ALWAYS, "Child err %v", err)
		return 1
	}
	return 0
}

func envInt(key string) (int, error) {
	s := os.Getenv(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad %v %q: %w", key, s, err)
	}
	return v, nil
}

func runChild() error {
	n, err := envInt(CSWITERS)
	if err != nil {
		return err
	}
	cpu, err := envInt(CSWCPU)
	if err != nil {
		return err
	}
	ep := channel.NewEndpoint("child", FD_DATA_R, FD_DATA_W)
	defer ep.Close()
	gate := os.NewFile(FD_GATE_R, "gate")
	rep := os.NewFile(FD_REPORT_W, "report")
	defer gate.Close()
	defer rep.Close()

	runtime.LockOSThread()
	if cpu != config.NO_CPU {
		if _, err := linuxsched.PinThread(cpu); err != nil {
			return err
		}
	}
	db.DPrintf(db.CHILD, "Child ready n %d cpu %d", n, cpu)
	if _, err := rep.Write([]byte{READY}); err != nil {
		return fmt.Errorf("ready: %w", err)
	}
	var b [1]byte
	if _, err := io.ReadFull(gate, b[:]); err != nil || b[0] != GO {
		return fmt.Errorf("gate: %v %v", b[0], err)
	}
	s0, err := perf.ThreadSwitches()
	if err != nil {
		return err
	}
	c, err := pingpong.Ping(ep, n, nil)
	if err != nil {
		return err
	}
	s1, err := perf.ThreadSwitches()
	if err != nil {
		return err
	}
	d := s1.Sub(s0)
	r := report{
		Writes:      c.Writes,
		Reads:       c.Reads,
		Voluntary:   d.Voluntary,
		Involuntary: d.Involuntary,
	}
	db.DPrintf(db.CHILD, "Child done %v %v", c, d)
	if err := binary.Write(rep, binary.LittleEndian, &r); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
