package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestKeyedMutexSerializesSameBill(t *testing.T) {
	locks := NewKeyedMutex()
	ctx := context.Background()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(ctx, 42)
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("expected at most one holder, saw %d", peak)
	}
	if len(locks.slots) != 0 {
		t.Errorf("expected slots to be released, %d left", len(locks.slots))
	}
}

func TestKeyedMutexDifferentBillsDoNotContend(t *testing.T) {
	locks := NewKeyedMutex()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := locks.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("Lock 1 failed: %v", err)
	}
	defer unlockA()

	unlockB, err := locks.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("Lock 2 should not wait on bill 1: %v", err)
	}
	unlockB()
}

func TestKeyedMutexHonorsContext(t *testing.T) {
	locks := NewKeyedMutex()
	unlock, err := locks.Lock(context.Background(), 7)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, 7); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock()

	again, err := locks.Lock(context.Background(), 7)
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	again()
}

func setupTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	locker, err := NewRedisLocker("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis locker: %v", err)
	}
	t.Cleanup(func() { locker.Close() })
	return locker, s
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	locker, s := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1001)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if !s.Exists(lockKey(1001)) {
		t.Fatal("expected lease key to exist")
	}
	if ttl := s.TTL(lockKey(1001)); ttl != time.Minute {
		t.Errorf("expected lease ttl of 1m, got %v", ttl)
	}

	unlock()
	if s.Exists(lockKey(1001)) {
		t.Error("expected lease key to be deleted on unlock")
	}
}

func TestRedisLockerWaitsForHolder(t *testing.T) {
	locker, _ := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 5)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(short, 5); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second holder to time out, got %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Lock(ctx, 5)
		if err != nil {
			t.Errorf("Lock after release failed: %v", err)
			close(acquired)
			return
		}
		next()
		close(acquired)
	}()

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lease")
	}
}

func TestRedisLockerDoesNotReleaseForeignLease(t *testing.T) {
	locker, s := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 9)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Lease expired and another worker took it over
	s.FastForward(2 * time.Minute)
	if err := s.Set(lockKey(9), "other-owner"); err != nil {
		t.Fatalf("failed to seed foreign lease: %v", err)
	}

	unlock()
	got, err := s.Get(lockKey(9))
	if err != nil || got != "other-owner" {
		t.Errorf("expected foreign lease to survive, got %q (%v)", got, err)
	}
}
