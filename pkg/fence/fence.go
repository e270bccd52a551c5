// Package fence implements the Fence Coordinator component (C3): it forces a
// round trip through the Change Pipeline before a pending RPC request is
// allowed to observe store state, guaranteeing the request is ordered behind
// any filesystem events already in flight when it was issued.
package fence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgelabs/forge/pkg/logging"
)

// FenceExtension is the file extension recognized by the Change Pipeline as
// a fence sentinel.
const FenceExtension = ".fence"

const fenceFileNamePrefix = "fenceFile~"

// defaultRetries is the number of times fence creation/deletion is retried
// before the request is released with the fencing-failed flag.
const defaultRetries = 3

// Coordinator tracks pending fence requests keyed by monotonic fence id.
type Coordinator struct {
	logger *logging.Logger
	dir    string

	nextID int64

	mu      sync.Mutex
	pending map[int64]chan bool // value delivered: true if fencing succeeded
}

// New constructs a Coordinator whose sentinel files live inside dir (which
// must be a directory under the watched cache root, since the change
// pipeline only recognizes fence deletions in the cache tree).
func New(dir string, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		logger:  logger,
		dir:     dir,
		pending: make(map[int64]chan bool),
	}
}

// sentinelPath computes the fence file path for the given id.
func (c *Coordinator) sentinelPath(id int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s%d%s", fenceFileNamePrefix, id, FenceExtension))
}

// Wait allocates a fence id, creates and immediately deletes the sentinel
// file (retrying on failure), and blocks until the Change Pipeline reports
// the deletion was observed or ctx is cancelled. It returns whether fencing
// actually succeeded; on retry exhaustion it returns false so the caller can
// still service the request but may log degraded correctness.
func (c *Coordinator) Wait(ctx context.Context) bool {
	id := atomic.AddInt64(&c.nextID, 1)
	result := make(chan bool, 1)

	c.mu.Lock()
	c.pending[id] = result
	c.mu.Unlock()

	if !c.createAndDelete(id) {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return false
	}

	select {
	case ok := <-result:
		return ok
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return false
	}
}

// createAndDelete performs the create-then-delete sentinel dance, retrying
// up to defaultRetries times if either step fails.
func (c *Coordinator) createAndDelete(id int64) bool {
	path := c.sentinelPath(id)
	for attempt := 0; attempt < defaultRetries; attempt++ {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			c.logger.Warnf("Unable to create fence sentinel (attempt %d): %s", attempt, err.Error())
			time.Sleep(time.Millisecond * time.Duration(10*(attempt+1)))
			continue
		}
		if err := os.Remove(path); err != nil {
			c.logger.Warnf("Unable to delete fence sentinel (attempt %d): %s", attempt, err.Error())
			time.Sleep(time.Millisecond * time.Duration(10*(attempt+1)))
			continue
		}
		return true
	}
	return false
}

// Satisfy is invoked by the Change Pipeline when it observes the deletion of
// a fence sentinel file. It releases the matching pending request, if any.
func (c *Coordinator) Satisfy(id int64) {
	c.mu.Lock()
	result, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	result <- true
}

// ParseSentinelID extracts the fence id from a sentinel file name, reporting
// false if name does not look like a fence sentinel.
func ParseSentinelID(name string) (int64, bool) {
	base := filepath.Base(name)
	if filepath.Ext(base) != FenceExtension {
		return 0, false
	}
	stem := base[:len(base)-len(FenceExtension)]
	if len(stem) <= len(fenceFileNamePrefix) || stem[:len(fenceFileNamePrefix)] != fenceFileNamePrefix {
		return 0, false
	}
	var id int64
	if _, err := fmt.Sscanf(stem[len(fenceFileNamePrefix):], "%d", &id); err != nil {
		return 0, false
	}
	return id, true
}
