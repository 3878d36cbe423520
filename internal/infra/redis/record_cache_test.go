package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRecordCacheStoresInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewRecordCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "abc"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Put(ctx, "abc", []byte("envelope")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("settlement:record:abc") {
		t.Fatalf("expected redis key to be set")
	}
	ttl := mr.TTL("settlement:record:abc")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, ok, err := cache.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "envelope" {
		t.Fatalf("unexpected envelope %q", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "abc"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestRecordCacheSurfacesConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	cache := NewRecordCache(client, time.Minute)
	if _, _, err := cache.Get(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
