package changepipeline

import (
	"testing"
	"time"
)

func TestCoalescerLatestWins(t *testing.T) {
	c := newCoalescer()
	defer c.Close()

	c.Ingest(RawEvent{Path: "foo.txt", Kind: EventModified})
	c.Ingest(RawEvent{Path: "foo.txt", Kind: EventDeleted})

	select {
	case ev := <-c.Out():
		if ev.Kind != EventDeleted {
			t.Fatalf("expected modify-then-delete to collapse to delete, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a coalesced event")
	}

	select {
	case ev := <-c.Out():
		t.Fatalf("expected exactly one coalesced event, got a second: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoalescerDistinctPathsDeliverIndependently(t *testing.T) {
	c := newCoalescer()
	defer c.Close()

	c.Ingest(RawEvent{Path: "a.txt", Kind: EventAdded})
	c.Ingest(RawEvent{Path: "b.txt", Kind: EventAdded})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-c.Out():
			seen[ev.Path] = true
		case <-time.After(time.Second):
			t.Fatal("expected two independent coalesced events")
		}
	}
	if !seen["a.txt"] || !seen["b.txt"] {
		t.Fatalf("expected both paths to be delivered, got %v", seen)
	}
}
