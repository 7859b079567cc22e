// Package stats tracks the pipeline counters exposed by /stats.
package stats

import (
	"sync"
	"sync/atomic"
)

// Counters accumulates pipeline totals for the process lifetime. Counter
// increments are lock-free; the last-error string has its own mutex.
type Counters struct {
	enqueued   atomic.Int64
	processed  atomic.Int64
	failed     atomic.Int64
	suppressed atomic.Int64

	mu        sync.Mutex
	lastError string
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Enqueued   int64  `json:"enqueued"`
	Processed  int64  `json:"processed"`
	Failed     int64  `json:"failed"`
	Suppressed int64  `json:"suppressed"`
	LastError  string `json:"last_error"`
}

// New creates zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// IncEnqueued records an accepted pop.
func (c *Counters) IncEnqueued() { c.enqueued.Add(1) }

// IncProcessed records a pop processed to completion.
func (c *Counters) IncProcessed() { c.processed.Add(1) }

// IncSuppressed records a pop suppressed by the dedupe window.
func (c *Counters) IncSuppressed() { c.suppressed.Add(1) }

// RecordFailure records a failed launch and stores its description.
func (c *Counters) RecordFailure(desc string) {
	c.failed.Add(1)
	c.mu.Lock()
	c.lastError = desc
	c.mu.Unlock()
}

// Snapshot returns a copy of the current totals.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	lastError := c.lastError
	c.mu.Unlock()

	return Snapshot{
		Enqueued:   c.enqueued.Load(),
		Processed:  c.processed.Load(),
		Failed:     c.failed.Load(),
		Suppressed: c.suppressed.Load(),
		LastError:  lastError,
	}
}
