package sched_test

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	linuxsched "cswitch/util/linux/sched"
)

func TestCompile(t *testing.T) {
}

func TestBasic(t *testing.T) {
	pid := os.Getpid()
	// Get the cores we can run on
	m, err := linuxsched.SchedGetAffinity(pid)
	assert.Nil(t, err, "SchedGetAffinity")
	core := false
	for i := uint(0); i < linuxsched.GetNCores(); i++ {
		if m.Test(i) {
			core = true
		}
	}
	assert.True(t, core, "Nnumber of cores")
}

func firstCore(t *testing.T) int {
	m, err := linuxsched.SchedGetAffinity(0)
	require.Nil(t, err)
	for i := uint(0); i < linuxsched.GetNCores(); i++ {
		if m.Test(i) {
			return int(i)
		}
	}
	t.Fatalf("no core in %v", m)
	return -1
}

func TestPinRestore(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cpu := firstCore(t)
	old, err := linuxsched.PinThread(cpu)
	require.Nil(t, err)

	m, err := linuxsched.SchedGetAffinity(0)
	require.Nil(t, err)
	assert.Equal(t, 1, m.Count())
	assert.True(t, m.Test(uint(cpu)))

	require.Nil(t, linuxsched.Restore(old))
	m, err = linuxsched.SchedGetAffinity(0)
	require.Nil(t, err)
	assert.Equal(t, old.Count(), m.Count())
}
