package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchJSONPopulatesAndReuses(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "usage", "report", "labs")
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return Report{"cheyenne": {Resource: "cheyenne", Allocated: 1000, Used: 350}}, nil
	}

	var first Report
	if err := cache.FetchJSON(ctx, key, &first, loader); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	var second Report
	if err := cache.FetchJSON(ctx, key, &second, loader); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("loader ran %d times, want 1", calls)
	}
	if second["cheyenne"].Used != 350 {
		t.Fatalf("cached report corrupted: %+v", second)
	}
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "usage", "report", "labs")
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("Bump() error = %v", err)
	}
	after, err := cache.BuildKey(ctx, "usage", "report", "labs")
	if err != nil {
		t.Fatalf("BuildKey() error = %v", err)
	}
	if before == after {
		t.Fatalf("bump did not change key: %s", before)
	}
}

func TestCacheNilClientPassThrough(t *testing.T) {
	var cache *Cache
	var out Report
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		return Report{"disk": {Resource: "disk"}}, nil
	})
	if err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if _, ok := out["disk"]; !ok {
		t.Fatalf("pass-through lost data: %+v", out)
	}
}

func TestCacheLoaderRequired(t *testing.T) {
	cache, _ := newTestCache(t)
	var out Report
	if err := cache.FetchJSON(context.Background(), "k", &out, nil); err == nil {
		t.Fatalf("expected error for nil loader")
	}
}

func TestCacheLoaderFailurePropagates(t *testing.T) {
	cache, _ := newTestCache(t)
	loadErr := errors.New("query failed")
	var out Report
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		return nil, loadErr
	})
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}
