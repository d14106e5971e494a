package benchmarks_test

import (
	"bytes"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"cswitch/benchmarks"
	"cswitch/channel"
	db "cswitch/debug"
	"cswitch/pingpong"
	"cswitch/test"
	"cswitch/worker"
)

func TestMain(m *testing.M) {
	test.Main(m)
}

func TestCompile(t *testing.T) {
}

func checkResult(t *testing.T, r *benchmarks.Result, n int) {
	assert.Equal(t, n, r.N)
	assert.True(t, r.Primary.Complete(n), "primary %v", r.Primary)
	assert.True(t, r.Secondary.Complete(n), "secondary %v", r.Secondary)
	us := r.PerSwitch()
	assert.True(t, us > 0, "per switch %v", us)
	assert.False(t, math.IsInf(us, 0) || math.IsNaN(us))
}

func TestPhases(t *testing.T) {
	ts := test.NewTstate(t)
	for _, m := range benchmarks.Models() {
		r, err := benchmarks.NewPhase(ts.Cfg, m).Run()
		require.Nil(t, err, "%v", m.Name)
		checkResult(t, r, ts.Cfg.Bench.ITERATIONS)
		db.DPrintf(db.TEST, "%v", r)
	}
}

func TestPhasesOneIteration(t *testing.T) {
	ts := test.NewTstate(t)
	ts.Cfg.Bench.ITERATIONS = 1
	for _, m := range benchmarks.Models() {
		r, err := benchmarks.NewPhase(ts.Cfg, m).Run()
		require.Nil(t, err, "%v", m.Name)
		checkResult(t, r, 1)
	}
}

func TestIncludeSpawn(t *testing.T) {
	ts := test.NewTstate(t)
	ts.Cfg.Bench.INCLUDE_SPAWN = true
	for _, m := range benchmarks.Models() {
		r, err := benchmarks.NewPhase(ts.Cfg, m).Run()
		require.Nil(t, err, "%v", m.Name)
		checkResult(t, r, ts.Cfg.Bench.ITERATIONS)
	}
}

func TestPrimaryTrace(t *testing.T) {
	ts := test.NewTstate(t)
	n := ts.Cfg.Bench.ITERATIONS
	for _, m := range benchmarks.Models() {
		log := pingpong.NewLog(2 * n)
		ph := benchmarks.NewPhase(ts.Cfg, m)
		ph.SetTracer(log)
		_, err := ph.Run()
		require.Nil(t, err)
		assert.Equal(t, strings.Repeat("RW", n), log.Ops(), "%v", m.Name)
	}
}

func TestOpenFails(t *testing.T) {
	ts := test.NewTstate(t)
	nnew := 0
	m := benchmarks.Tmodel{
		Name: "Counting",
		New: func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker {
			nnew++
			return worker.NewThread(ep, n, opts)
		},
	}
	ph := benchmarks.NewPhase(ts.Cfg, m)
	ph.SetOpen(func(name string) (*channel.Pair, error) {
		return nil, unix.EMFILE
	})
	r, err := ph.Run()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, unix.EMFILE)
	assert.Equal(t, 0, nnew, "worker created after channel failure")
}

// Records the pair a phase opens.
type opener struct {
	pair *channel.Pair
}

func (o *opener) open(name string) (*channel.Pair, error) {
	p, err := channel.Open(name)
	o.pair = p
	return p, err
}

func TestStartFailsReleasesChannel(t *testing.T) {
	ts := test.NewTstate(t)
	o := &opener{}
	ph := benchmarks.NewPhase(ts.Cfg, benchmarks.PROCESS)
	ph.SetOpen(o.open)
	opts := ts.Opts()
	opts.Path = "/nonexistent/cswbench"
	ph.SetOpts(opts)

	r, err := ph.Run()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, worker.ErrWorker)
	require.NotNil(t, o.pair)
	assert.True(t, o.pair.Closed(), "channel leaked")
}

// A worker that fails to start.
type deadWorker struct{}

func (deadWorker) Start() error                   { return errors.New("no threads") }
func (deadWorker) Release() error                 { return nil }
func (deadWorker) Wait() (pingpong.Counts, error) { return pingpong.Counts{}, nil }
func (deadWorker) Kill()                          {}

func TestSpawnFailsReleasesChannel(t *testing.T) {
	ts := test.NewTstate(t)
	o := &opener{}
	m := benchmarks.Tmodel{
		Name: "Dead",
		New: func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker {
			return deadWorker{}
		},
	}
	ph := benchmarks.NewPhase(ts.Cfg, m)
	ph.SetOpen(o.open)
	_, err := ph.Run()
	assert.NotNil(t, err)
	assert.True(t, o.pair.Closed(), "channel leaked")
}

// A worker that under-reports its iterations.
type shortWorker struct {
	worker.Worker
}

func (w shortWorker) Wait() (pingpong.Counts, error) {
	c, err := w.Worker.Wait()
	c.Reads--
	return c, err
}

func TestCountMismatch(t *testing.T) {
	ts := test.NewTstate(t)
	m := benchmarks.Tmodel{
		Name: "Short",
		New: func(ep *channel.Endpoint, n int, opts worker.Opts) worker.Worker {
			return shortWorker{worker.NewThread(ep, n, opts)}
		},
	}
	r, err := benchmarks.NewPhase(ts.Cfg, m).Run()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, benchmarks.ErrCount)
}

var line = regexp.MustCompile(`^\[(Thread |Process)\] Avg Context Switch: ([0-9]+\.[0-9]{3}) us$`)

func TestEstimator(t *testing.T) {
	ts := test.NewTstate(t)
	ts.Cfg.Bench.TRIALS = 3
	var out bytes.Buffer
	sums, err := benchmarks.NewEstimator(ts.Cfg).Run(&out)
	require.Nil(t, err)
	require.Equal(t, 2, len(sums))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Equal(t, 2, len(lines), "output %q", out.String())
	assert.Regexp(t, line, lines[0])
	assert.True(t, strings.HasPrefix(lines[0], "[Thread ]"))
	assert.True(t, strings.HasPrefix(lines[1], "[Process]"))
	for _, s := range sums {
		assert.Equal(t, 3, len(s.Trials))
		us, err := s.PerSwitch()
		assert.Nil(t, err)
		assert.True(t, us > 0)
		_, _, err = s.Results.CI95()
		assert.Nil(t, err)
	}
}

func TestEstimatorStops(t *testing.T) {
	ts := test.NewTstate(t)
	var phases []string
	e := benchmarks.NewEstimator(ts.Cfg)
	e.SetPhase(func(m benchmarks.Tmodel) *benchmarks.Phase {
		phases = append(phases, m.Name)
		ph := benchmarks.NewPhase(ts.Cfg, m)
		ph.SetOpen(func(name string) (*channel.Pair, error) {
			return nil, unix.EMFILE
		})
		return ph
	})
	var out bytes.Buffer
	sums, err := e.Run(&out)
	assert.ErrorIs(t, err, unix.EMFILE)
	assert.Equal(t, 0, len(sums))
	assert.Equal(t, "", out.String())
	assert.Equal(t, []string{benchmarks.THREAD.Name}, phases, "later phases attempted")
}
