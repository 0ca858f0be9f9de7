// Package jobs coordinates the long-running background jobs so that at
// most one job of each kind runs at a time.
package jobs

import (
	"errors"
	"sync"
)

// Kind identifies a category of background job.
type Kind string

// Job kinds.
const (
	KindScan     Kind = "scan"
	KindOrganize Kind = "organize"
)

// ErrAlreadyRunning is returned by Acquire when a job of the same kind
// holds the slot.
var ErrAlreadyRunning = errors.New("a job of this kind is already running")

// Coordinator is a process-wide registry of running jobs. Acquire and
// Release bracket a job's lifetime; the test-and-set inside Acquire is
// atomic, so two concurrent starters cannot both win.
type Coordinator struct {
	mu     sync.Mutex
	active map[Kind]bool
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{active: make(map[Kind]bool)}
}

// Acquire claims the slot for kind. It fails with ErrAlreadyRunning when
// the slot is taken.
func (c *Coordinator) Acquire(kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[kind] {
		return ErrAlreadyRunning
	}
	c.active[kind] = true
	return nil
}

// Release frees the slot for kind. Releasing an unclaimed slot is a no-op.
func (c *Coordinator) Release(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, kind)
}

// Active reports whether a job of the given kind currently holds the slot.
func (c *Coordinator) Active(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[kind]
}
