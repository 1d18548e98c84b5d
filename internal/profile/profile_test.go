package profile

import (
	"sync"
	"testing"
	"time"
)

func TestCounter_ConcurrentAdd(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Add(time.Microsecond)
			}
		}()
	}
	wg.Wait()
	if c.Total() != 5000*time.Microsecond {
		t.Errorf("expected 5ms, got %v", c.Total())
	}
}

func TestCounter_IgnoresNegativeAndNil(t *testing.T) {
	var c Counter
	c.Add(-time.Second)
	if c.Total() != 0 {
		t.Errorf("expected 0, got %v", c.Total())
	}
	var nilCounter *Counter
	nilCounter.Add(time.Second)
	if nilCounter.Seconds() != 0 {
		t.Error("expected nil counter to read 0")
	}
}

func TestLatencySnapshotPercentiles(t *testing.T) {
	l := NewLatency(time.Hour)
	for _, us := range []int64{100, 200, 300, 400, 500} {
		l.Record(time.Duration(us) * time.Microsecond)
	}

	snap := l.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinUs != 100 || snap.MaxUs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinUs, snap.MaxUs)
	}
	if snap.AvgUs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgUs)
	}
	if snap.P50Us != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Us)
	}
	if snap.P95Us != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Us)
	}
	if snap.P99Us != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Us)
	}
}

func TestLatencyPrunesExpiredSamples(t *testing.T) {
	l := NewLatency(10 * time.Millisecond)
	l.Record(time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if snap := l.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	l.Record(2 * time.Millisecond)
	snap := l.Snapshot()
	if snap.Count != 1 || snap.MinUs != 2000 {
		t.Fatalf("expected one fresh sample of 2000us, got %+v", snap)
	}
}

func TestStageLatency_PerStage(t *testing.T) {
	s := NewStageLatency(time.Hour)
	s.For("tagger").Record(time.Millisecond)
	s.For("tagger").Record(time.Millisecond)
	s.For("parser").Record(time.Millisecond)

	snap := s.Snapshot()
	if snap["tagger"].Count != 2 || snap["parser"].Count != 1 {
		t.Errorf("unexpected per-stage counts %+v", snap)
	}
	if s.For("tagger") != s.For("tagger") {
		t.Error("expected the same window for a stage")
	}
}
