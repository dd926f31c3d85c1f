package game

import (
	"context"
	"sync"
	"testing"
)

func TestMutexLockerSerializesPerKey(t *testing.T) {
	locker := NewMutexLocker()
	ctx := context.Background()

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "game-1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("counter = %d, want %d (lost update under contention)", counter, workers)
	}
}

func TestMutexLockerReleasesEntries(t *testing.T) {
	locker := NewMutexLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "game-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if len(locker.locks) != 0 {
		t.Fatalf("locker retains %d entries after release, want 0", len(locker.locks))
	}
}

func TestMutexLockerIndependentKeys(t *testing.T) {
	locker := NewMutexLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "game-a")
	if err != nil {
		t.Fatalf("Lock(game-a): %v", err)
	}
	defer unlockA()

	// A second key must not block behind the first.
	done := make(chan struct{})
	go func() {
		unlockB, err := locker.Lock(ctx, "game-b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	<-done
}
