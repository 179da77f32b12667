package middleware

import (
	"testing"
	"time"
)

func TestThrottleAllowsBurstThenRefills(t *testing.T) {
	th := newSymbolThrottle(2, 1) // burst of 2, refills 1/s
	now := time.Unix(1000, 0)

	if !th.Allow("AAPL", now) || !th.Allow("AAPL", now) {
		t.Fatal("burst within capacity should pass")
	}
	if th.Allow("AAPL", now) {
		t.Fatal("third tick in the same instant should be shed")
	}

	// One second refills one token.
	now = now.Add(time.Second)
	if !th.Allow("AAPL", now) {
		t.Fatal("tick after refill should pass")
	}
	if th.Allow("AAPL", now) {
		t.Fatal("refill grants a single token, not the full bucket")
	}
}

func TestThrottleKeepsSymbolsIndependent(t *testing.T) {
	th := newSymbolThrottle(1, 1)
	now := time.Unix(1000, 0)

	if !th.Allow("AAPL", now) {
		t.Fatal("first AAPL tick should pass")
	}
	if !th.Allow("MSFT", now) {
		t.Fatal("MSFT has its own bucket")
	}
	if th.Allow("AAPL", now) {
		t.Fatal("AAPL bucket is drained")
	}
}

func TestThrottleDisabledWhenRateZero(t *testing.T) {
	th := newSymbolThrottle(0, 0)
	now := time.Unix(1000, 0)
	for i := 0; i < 100; i++ {
		if !th.Allow("AAPL", now) {
			t.Fatal("zero rate disables the throttle")
		}
	}
}
