package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheCollapsesConcurrentLoads(t *testing.T) {
	cache := NewCache(time.Minute)

	var calls int64
	release := make(chan struct{})
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return []byte(`{"rank":1}`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := cache.GetOrLoad(context.Background(), "stats:leaderboard:1", load)
			if err != nil {
				t.Errorf("get or load: %v", err)
			}
			if string(payload) != `{"rank":1}` {
				t.Errorf("unexpected payload %q", payload)
			}
		}()
	}
	// Give every goroutine time to reach the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected one load for concurrent misses, got %d", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{}`), nil
	}

	if _, err := cache.GetOrLoad(context.Background(), "stats:site", load); err != nil {
		t.Fatalf("get or load: %v", err)
	}
	if _, err := cache.GetOrLoad(context.Background(), "stats:site", load); err != nil {
		t.Fatalf("cached hit: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", calls)
	}

	current = current.Add(2 * time.Minute)

	if _, err := cache.GetOrLoad(context.Background(), "stats:site", load); err != nil {
		t.Fatalf("get or load after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(time.Minute)

	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{}`), nil
	}

	_, _ = cache.GetOrLoad(context.Background(), "stats:top", load)
	cache.Invalidate(context.Background(), "stats:top")
	_, _ = cache.GetOrLoad(context.Background(), "stats:top", load)

	if calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", calls)
	}
}
