package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStatsCacheCollapsesLoads(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewStatsCache(newClient(mr), time.Minute)

	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"rank":1}`), nil
	}

	payload, err := cache.GetOrLoad(context.Background(), "stats:leaderboard:1", load)
	if err != nil {
		t.Fatalf("get or load: %v", err)
	}
	if string(payload) != `{"rank":1}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if calls != 1 {
		t.Fatalf("expected loader called once, got %d", calls)
	}

	// Second call should hit cache, loader not incremented.
	_, _ = cache.GetOrLoad(context.Background(), "stats:leaderboard:1", load)
	if calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", calls)
	}
}

func TestStatsCacheExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewStatsCache(newClient(mr), time.Minute)

	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{}`), nil
	}

	if _, err := cache.GetOrLoad(context.Background(), "stats:site", load); err != nil {
		t.Fatalf("get or load: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.GetOrLoad(context.Background(), "stats:site", load); err != nil {
		t.Fatalf("get or load after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", calls)
	}
}

func TestStatsCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewStatsCache(newClient(mr), time.Minute)

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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
