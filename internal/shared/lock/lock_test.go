package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "SKU1")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside)
	}
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	exerciseMutualExclusion(t, l)
	if n := l.held(); n != 0 {
		t.Fatalf("entries left after release: %d", n)
	}
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	r1, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire b blocked by a: %v", err)
	}
	r2()
}

func TestLocalLockerContextCancel(t *testing.T) {
	l := NewLocalLocker()
	release, _ := l.Acquire(context.Background(), "SKU1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "SKU1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	release()
	release()
	if n := l.held(); n != 0 {
		t.Fatalf("entries left after release: %d", n)
	}
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	l := NewRedisLocker(client, fmt.Sprintf("wms:test:%d:", time.Now().UnixNano()), time.Second, nil)
	exerciseMutualExclusion(t, l)
}
