// Package stats keeps a rolling window of host commit latencies.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	ops        int
	failed     bool
}

// Snapshot is a point-in-time aggregate of commit samples.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	Ops      int     `json:"ops"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// CommitStats tracks recent commit round trips within a rolling window. It
// implements remote.Observer.
type CommitStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewCommitStats(maxAge time.Duration) *CommitStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &CommitStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// ObserveCommit records one round trip.
func (s *CommitStats) ObserveCommit(ops int, elapsed time.Duration, err error) {
	s.record(sample{durationMs: elapsed.Milliseconds(), ops: ops, failed: err != nil})
}

// Record adds a successful sample of durationMs.
func (s *CommitStats) Record(durationMs int64) {
	s.record(sample{durationMs: durationMs})
}

func (s *CommitStats) record(sm sample) {
	if sm.durationMs < 0 {
		sm.durationMs = 0
	}
	now := time.Now()
	sm.timestamp = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sm)
}

func (s *CommitStats) Snapshot() Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return Snapshot{}
	}

	snap := Snapshot{Count: len(s.samples)}
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		snap.Ops += sm.ops
		if sm.failed {
			snap.Failures++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *CommitStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
