package services

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"qwenbridge/internal/models"
)

func newTestTracker() *PerformanceTracker {
	return NewPerformanceTracker(prometheus.NewRegistry())
}

func TestTrackerEmptySnapshot(t *testing.T) {
	tracker := newTestTracker()
	snap := tracker.Snapshot()

	if snap.Direct.Calls != 0 || snap.Fallback.Calls != 0 {
		t.Error("Expected zero counts on fresh tracker")
	}
	if snap.Direct.AvgSeconds != 0 {
		t.Error("Average with zero calls must be 0")
	}
	if snap.SpeedImprovement != nil {
		t.Error("Speed improvement must be absent when either count is zero")
	}
}

func TestTrackerSpeedImprovement(t *testing.T) {
	tracker := newTestTracker()

	tracker.Record(models.TransportDirect, 800*time.Millisecond, true)
	tracker.Record(models.TransportFallback, 16*time.Second, true)

	snap := tracker.Snapshot()
	if snap.SpeedImprovement == nil {
		t.Fatal("Expected speed improvement with one call on each transport")
	}
	if math.Abs(*snap.SpeedImprovement-20.0) > 0.01 {
		t.Errorf("Expected speed improvement ~20.0, got %v", *snap.SpeedImprovement)
	}
}

func TestTrackerRatioAbsentWithOneTransport(t *testing.T) {
	tracker := newTestTracker()
	tracker.Record(models.TransportDirect, time.Second, true)

	if snap := tracker.Snapshot(); snap.SpeedImprovement != nil {
		t.Error("Ratio must be absent until both transports have a call")
	}
}

func TestTrackerAverages(t *testing.T) {
	tracker := newTestTracker()

	tracker.Record(models.TransportDirect, time.Second, true)
	tracker.Record(models.TransportDirect, 3*time.Second, false)

	snap := tracker.Snapshot()
	if snap.Direct.Calls != 2 || snap.Direct.Successes != 1 || snap.Direct.Failures != 1 {
		t.Errorf("Unexpected direct counters: %+v", snap.Direct)
	}
	if math.Abs(snap.Direct.AvgSeconds-2.0) > 0.001 {
		t.Errorf("Expected avg 2.0s, got %v", snap.Direct.AvgSeconds)
	}
}

func TestTrackerDirectSkips(t *testing.T) {
	tracker := newTestTracker()

	tracker.RecordDirectSkip()
	tracker.RecordDirectSkip()

	snap := tracker.Snapshot()
	if snap.DirectSkips != 2 {
		t.Errorf("Expected 2 skips, got %d", snap.DirectSkips)
	}
	if snap.Direct.Calls != 0 {
		t.Error("Skips must not count as direct calls")
	}
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tracker := newTestTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tracker.Record(models.TransportDirect, time.Second, true)
		}()
		go func() {
			defer wg.Done()
			tracker.Record(models.TransportFallback, 2*time.Second, true)
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.Direct.Calls != 50 || snap.Fallback.Calls != 50 {
		t.Errorf("Expected 50 calls each, got direct=%d fallback=%d", snap.Direct.Calls, snap.Fallback.Calls)
	}
}

func TestTrackerCountsMonotonic(t *testing.T) {
	tracker := newTestTracker()

	prev := tracker.Snapshot()
	for i := 0; i < 10; i++ {
		tracker.Record(models.TransportDirect, time.Millisecond, i%2 == 0)
		snap := tracker.Snapshot()
		if snap.Direct.Calls < prev.Direct.Calls {
			t.Fatal("Call counts must only ever increase")
		}
		prev = snap
	}
}
