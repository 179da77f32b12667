package middleware

import (
	"sync"
	"time"
)

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// symbolThrottle rate-limits ticks per symbol with a token bucket, so short
// bursts pass while a sustained flood is shed.
type symbolThrottle struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	buckets  map[string]*tokenBucket
}

func newSymbolThrottle(capacity, ratePerSec float64) *symbolThrottle {
	return &symbolThrottle{
		capacity: capacity,
		rate:     ratePerSec,
		buckets:  make(map[string]*tokenBucket),
	}
}

// Allow consumes one token for symbol and reports whether it was available.
func (t *symbolThrottle) Allow(symbol string, now time.Time) bool {
	if t.rate <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[symbol]
	if !ok {
		b = &tokenBucket{tokens: t.capacity, last: now}
		t.buckets[symbol] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * t.rate
		if b.tokens > t.capacity {
			b.tokens = t.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
