package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	type tick struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}

	if err := mc.Set(ctx, GenerateKey("tick", "AAPL"), tick{Symbol: "AAPL", Price: 187.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got tick
	if err := mc.Get(ctx, "tick:AAPL", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 187.5 {
		t.Fatalf("price = %v, want 187.5", got.Price)
	}

	ok, err := mc.Exists(ctx, "tick:AAPL")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	if err := mc.Delete(ctx, "tick:AAPL"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mc.Get(ctx, "tick:AAPL", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("get after delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if err := mc.Get(ctx, "k", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("get expired = %v, want ErrCacheMiss", err)
	}
}

func TestMGetTyped(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	type tick struct {
		Symbol string `json:"symbol"`
	}
	_ = mc.Set(ctx, "tick:AAPL", tick{Symbol: "AAPL"}, time.Minute)
	_ = mc.Set(ctx, "tick:BAD", "not json{", time.Minute)

	out, err := MGetTyped[tick](ctx, mc, "tick:AAPL", "tick:BAD", "tick:MISSING")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(out) != 1 || out["tick:AAPL"].Symbol != "AAPL" {
		t.Fatalf("unexpected result: %+v", out)
	}
}
