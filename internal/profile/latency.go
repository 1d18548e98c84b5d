package profile

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp time.Time
	micros    int64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinUs int64   `json:"min_us"`
	MaxUs int64   `json:"max_us"`
	AvgUs float64 `json:"avg_us"`
	P50Us float64 `json:"p50_us"`
	P95Us float64 `json:"p95_us"`
	P99Us float64 `json:"p99_us"`
}

// Latency tracks recent call latencies within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	l.samples = append(l.samples, sample{timestamp: now, micros: us})
}

func (l *Latency) Snapshot() Snapshot {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if len(l.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(l.samples))
	var sum int64
	for _, s := range l.samples {
		values = append(values, s.micros)
		sum += s.micros
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count: len(values),
		MinUs: values[0],
		MaxUs: values[len(values)-1],
		AvgUs: float64(sum) / float64(len(values)),
		P50Us: percentile(values, 50),
		P95Us: percentile(values, 95),
		P99Us: percentile(values, 99),
	}
}

func (l *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	keep := 0
	for _, s := range l.samples {
		if !s.timestamp.Before(cutoff) {
			l.samples[keep] = s
			keep++
		}
	}
	l.samples = l.samples[:keep]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}

// StageLatency keeps one rolling window per named stage.
type StageLatency struct {
	mu     sync.Mutex
	maxAge time.Duration
	stages map[string]*Latency
}

func NewStageLatency(maxAge time.Duration) *StageLatency {
	return &StageLatency{maxAge: maxAge, stages: make(map[string]*Latency)}
}

// For returns the window of stage, creating it on first use.
func (s *StageLatency) For(stage string) *Latency {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.stages[stage]
	if !ok {
		l = NewLatency(s.maxAge)
		s.stages[stage] = l
	}
	return l
}

// Snapshot returns one aggregate per stage seen so far.
func (s *StageLatency) Snapshot() map[string]Snapshot {
	s.mu.Lock()
	stages := make(map[string]*Latency, len(s.stages))
	for k, v := range s.stages {
		stages[k] = v
	}
	s.mu.Unlock()

	out := make(map[string]Snapshot, len(stages))
	for k, v := range stages {
		out[k] = v.Snapshot()
	}
	return out
}
