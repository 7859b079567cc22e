package stats

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	c := New()
	c.IncEnqueued()
	c.IncEnqueued()
	c.IncProcessed()
	c.IncSuppressed()
	c.RecordFailure("spawn failed: exit 1")

	s := c.Snapshot()
	if s.Enqueued != 2 {
		t.Errorf("enqueued = %d, want 2", s.Enqueued)
	}
	if s.Processed != 1 {
		t.Errorf("processed = %d, want 1", s.Processed)
	}
	if s.Suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", s.Suppressed)
	}
	if s.Failed != 1 {
		t.Errorf("failed = %d, want 1", s.Failed)
	}
	if s.LastError != "spawn failed: exit 1" {
		t.Errorf("lastError = %q", s.LastError)
	}
}

func TestCountersConcurrent(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncEnqueued()
				c.RecordFailure("err")
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.Enqueued != 1000 {
		t.Errorf("enqueued = %d, want 1000", s.Enqueued)
	}
	if s.Failed != 1000 {
		t.Errorf("failed = %d, want 1000", s.Failed)
	}
}
