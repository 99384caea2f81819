// Package stats summarizes repeated query latencies.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Summary is the latency distribution of a run of samples.
type Summary struct {
	Count  int
	Errors int
	Min    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Max    time.Duration
}

// Recorder collects samples. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int
}

// Record adds one sample. Failed samples are counted but excluded from the
// latency distribution.
func (r *Recorder) Record(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return
	}
	r.latencies = append(r.latencies, d)
}

// Time runs fn and records how long it took.
func (r *Recorder) Time(fn func() error) error {
	start := time.Now()
	err := fn()
	r.Record(time.Since(start), err)
	return err
}

// Summary computes the distribution of the samples recorded so far.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	samples := append([]time.Duration(nil), r.latencies...)
	errs := r.errors
	r.mu.Unlock()

	s := Summarize(samples)
	s.Errors = errs
	return s
}

// Summarize computes the distribution of latencies. High percentiles of a
// small sample equal its maximum.
func Summarize(latencies []time.Duration) Summary {
	if len(latencies) == 0 {
		return Summary{}
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return Summary{
		Count: len(sorted),
		Min:   sorted[0],
		Mean:  total / time.Duration(len(sorted)),
		P50:   Percentile(sorted, 0.50),
		P95:   Percentile(sorted, 0.95),
		P99:   Percentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
	}
}

// Percentile returns the value at percentile p of sorted latencies using the
// nearest-rank method: index = ceil(n * p) - 1, clamped to [0, n-1].
func Percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	index := int(math.Ceil(float64(n)*p)) - 1
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return sorted[index]
}
