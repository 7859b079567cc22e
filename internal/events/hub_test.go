package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypePopQueued, map[string]string{"url": "https://a.test/x"})

	select {
	case ev := <-ch:
		if ev.Type != TypePopQueued {
			t.Errorf("type = %q", ev.Type)
		}
		if ev.ID != 1 {
			t.Errorf("id = %d, want 1", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSnapshotSince(t *testing.T) {
	h := NewHub(4)
	for i := 0; i < 6; i++ {
		h.Publish(TypePopLaunched, nil)
	}

	// Ring holds the last 4 events (IDs 3..6).
	all := h.SnapshotSince(0)
	if len(all) != 4 {
		t.Fatalf("snapshot length = %d, want 4", len(all))
	}
	if all[0].ID != 3 || all[3].ID != 6 {
		t.Errorf("snapshot IDs = %d..%d, want 3..6", all[0].ID, all[3].ID)
	}

	since := h.SnapshotSince(5)
	if len(since) != 1 || since[0].ID != 6 {
		t.Errorf("SnapshotSince(5) = %v", since)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More events than the subscriber buffer holds.
		for i := 0; i < 300; i++ {
			h.Publish(TypePopQueued, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}
