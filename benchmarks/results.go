package benchmarks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrNoResults = errors.New("not enough results")

// Results of the trials of one model. Each data point is the elapsed time
// of one trial and the number of round trips it made.
type Results struct {
	dur []time.Duration
	amt []float64
	lat []float64 // us per switch, cached for the stats library
	tpt []float64 // switches per second, cached for the stats library
}

func NewResults(n int) *Results {
	r := &Results{}
	r.dur = make([]time.Duration, 0, n)
	r.amt = make([]float64, 0, n)
	return r
}

// Add a data point, and return its index.
func (r *Results) Append(d time.Duration, amt float64) int {
	i := len(r.dur)
	r.dur = append(r.dur, d)
	r.amt = append(r.amt, amt)
	// Kill cache
	r.lat = nil
	r.tpt = nil
	return i
}

func (r *Results) Len() int {
	return len(r.dur)
}

// Convert to floats for the stats library. Cache the results of
// conversion.
func (r *Results) toFloats() ([]float64, []float64) {
	if r.lat != nil && r.tpt != nil {
		return r.lat, r.tpt
	}
	lat := make([]float64, len(r.dur))
	tpt := make([]float64, len(r.dur))
	for i := range r.dur {
		lat[i] = float64(r.dur[i].Nanoseconds()) / 1000.0 / r.amt[i]
		tpt[i] = r.amt[i] / r.dur[i].Seconds()
	}
	r.lat = lat
	r.tpt = tpt
	return lat, tpt
}

// Mean per-switch latency in us, and mean throughput in switches/sec.
func (r *Results) Mean() (float64, float64, error) {
	lat, tpt := r.toFloats()
	l, err := stats.Mean(lat)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: mean: %v", ErrNoResults, err)
	}
	t, err := stats.Mean(tpt)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: mean: %v", ErrNoResults, err)
	}
	return l, t, nil
}

func (r *Results) StdDev() (float64, error) {
	lat, _ := r.toFloats()
	l, err := stats.StandardDeviation(lat)
	if err != nil {
		return 0, fmt.Errorf("%w: stddev: %v", ErrNoResults, err)
	}
	return l, nil
}

// Percentile of the per-switch latency, p in (0, 100].
func (r *Results) Percentile(p float64) (float64, error) {
	if p <= 0.0 || p > 100.0 {
		return 0, fmt.Errorf("bad percentile, not in (0, 100.0]: %v", p)
	}
	lat, _ := r.toFloats()
	l, err := stats.Percentile(lat, p)
	if err != nil {
		return 0, fmt.Errorf("%w: percentile %v: %v", ErrNoResults, p, err)
	}
	return l, nil
}

func (r *Results) Min() (float64, error) {
	lat, _ := r.toFloats()
	return stats.Min(lat)
}

func (r *Results) Max() (float64, error) {
	lat, _ := r.toFloats()
	return stats.Max(lat)
}

// CI95 returns the 95% confidence interval of the mean per-switch latency,
// using Student's t distribution. It needs at least two data points.
func (r *Results) CI95() (float64, float64, error) {
	n := r.Len()
	if n < 2 {
		return 0, 0, fmt.Errorf("%w: %d trials for confidence interval", ErrNoResults, n)
	}
	mean, _, err := r.Mean()
	if err != nil {
		return 0, 0, err
	}
	lat, _ := r.toFloats()
	sd, err := stats.StandardDeviationSample(lat)
	if err != nil {
		return 0, 0, err
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.975)
	h := t * sd / math.Sqrt(float64(n))
	return mean - h, mean + h, nil
}

// Print summary of results.
func (r *Results) Summary() (string, error) {
	mean, tpt, err := r.Mean()
	if err != nil {
		return "", err
	}
	std, err := r.StdDev()
	if err != nil {
		return "", err
	}
	min, _ := r.Min()
	max, _ := r.Max()
	p50, _ := r.Percentile(50)
	p99, _ := r.Percentile(99)
	s := fmt.Sprintf("Stats (us/switch):\n Trials: %d\n Mean: %.3f\n Std: %.3f\n Min: %.3f\n 50: %.3f\n 99: %.3f\n Max: %.3f\n Tpt: %.0f switches/sec",
		r.Len(), mean, std, min, p50, p99, max, tpt)
	if lo, hi, err := r.CI95(); err == nil {
		s += fmt.Sprintf("\n CI95: [%.3f, %.3f]", lo, hi)
	}
	return s, nil
}

func (r *Results) String() string {
	s := ""
	for i := 0; i < len(r.dur); i++ {
		s += fmt.Sprintf("&{ Lat %v Tpt %f switches/sec }\n", r.dur[i], r.amt[i]/r.dur[i].Seconds())
	}
	return s
}
