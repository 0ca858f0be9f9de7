package jobs

import (
	"errors"
	"sync"
	"testing"
)

func TestCoordinatorAcquireRelease(t *testing.T) {
	c := NewCoordinator()

	if err := c.Acquire(KindScan); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if !c.Active(KindScan) {
		t.Error("expected scan slot to be active after Acquire")
	}

	if err := c.Acquire(KindScan); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Acquire = %v, want ErrAlreadyRunning", err)
	}

	// A different kind is independent.
	if err := c.Acquire(KindOrganize); err != nil {
		t.Errorf("Acquire(organize) while scan held = %v, want nil", err)
	}

	c.Release(KindScan)
	if c.Active(KindScan) {
		t.Error("expected scan slot to be free after Release")
	}
	if err := c.Acquire(KindScan); err != nil {
		t.Errorf("Acquire after Release = %v, want nil", err)
	}
}

func TestCoordinatorConcurrentAcquire(t *testing.T) {
	c := NewCoordinator()

	const attempts = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Acquire(KindScan); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestCoordinatorReleaseUnclaimed(t *testing.T) {
	c := NewCoordinator()
	c.Release(KindOrganize)
	if c.Active(KindOrganize) {
		t.Error("releasing an unclaimed slot should leave it inactive")
	}
}
