package idle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/store"
)

// fakeProbe lets tests control IsIdle's return value directly.
type fakeProbe struct {
	idle bool
}

func (f *fakeProbe) IsIdle() bool { return f.idle }

func newTestDetector(t *testing.T) (*Detector, *fakeProbe, *fakeProbe, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pipeline := &fakeProbe{}
	scheduler := &fakeProbe{}
	d := New(pipeline, scheduler, st, logging.NewRoot(logging.LevelError))
	return d, pipeline, scheduler, st
}

func TestCheckBroadcastsOnlyOnTransitionToIdle(t *testing.T) {
	d, pipeline, scheduler, _ := newTestDetector(t)

	baseline, err := d.events.WaitForChange(context.Background(), 0)
	if err != nil {
		t.Fatalf("baseline WaitForChange: %v", err)
	}

	pipeline.idle = false
	scheduler.idle = false
	d.check()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.events.WaitForChange(ctx, baseline); err == nil {
		t.Fatalf("expected no idle event while still busy")
	}

	pipeline.idle = true
	scheduler.idle = true
	d.check()

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	afterFirstIdle, err := d.events.WaitForChange(ctx2, baseline)
	if err != nil {
		t.Fatalf("expected idle event after transition to idle: %v", err)
	}

	if !d.compactedOnce {
		t.Fatalf("expected compaction to have run on first idle transition")
	}

	// A second poll while still idle must not broadcast again.
	d.check()
	ctx3, cancel3 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel3()
	if _, err := d.events.WaitForChange(ctx3, afterFirstIdle); err == nil {
		t.Fatalf("expected no second broadcast while idleness persists")
	}
}

func TestCheckRequiresBothProbesIdle(t *testing.T) {
	d, pipeline, scheduler, _ := newTestDetector(t)

	pipeline.idle = true
	scheduler.idle = false
	d.check()

	if d.wasIdle {
		t.Fatalf("should not be idle while the scheduler still has work")
	}
}
