package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "hello", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var s string
	if err := mc.Get(ctx, "k", &s); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q, want %q", s, "hello")
	}

	if err := mc.Get(ctx, "missing", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("missing key: err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheTypeMismatch(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", 42, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("string dest over int value: err = %v, want ErrCacheMiss", err)
	}

	var v interface{}
	if err := mc.Get(ctx, "k", &v); err != nil {
		t.Fatalf("interface dest: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key: err = %v, want ErrCacheMiss", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatal("Exists reports an expired key")
	}
}

func TestMemoryCacheDeleteAndExists(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)

	if ok, err := mc.Exists(ctx, "a", "b"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := mc.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := mc.Exists(ctx, "a", "b"); ok {
		t.Fatal("keys survive Delete")
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "old", "1", time.Minute)
	time.Sleep(2 * time.Millisecond)
	_ = mc.Set(ctx, "newer", "2", time.Minute)
	time.Sleep(2 * time.Millisecond)

	// cache is full; inserting a third key evicts the least recently
	// touched one
	_ = mc.Set(ctx, "newest", "3", time.Minute)

	var s string
	if err := mc.Get(ctx, "old", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("evicted key: err = %v, want ErrCacheMiss", err)
	}
	if err := mc.Get(ctx, "newer", &s); err != nil {
		t.Fatalf("surviving key: %v", err)
	}
	if err := mc.Get(ctx, "newest", &s); err != nil {
		t.Fatalf("new key: %v", err)
	}
}
