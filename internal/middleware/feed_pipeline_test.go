package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"PortPulse/internal/domain/models"
	"PortPulse/pkg/logger"
)

type noopMetrics struct{}

func (noopMetrics) RecordSnapshot(string)               {}
func (noopMetrics) RecordValidationError(string)        {}
func (noopMetrics) RecordTicks(int, int)                {}
func (noopMetrics) RecordAlert(string)                  {}
func (noopMetrics) RecordDecision(string)               {}
func (noopMetrics) RecordLifecycle(string, string, int) {}
func (noopMetrics) RecordLatency(string, float64)       {}
func (noopMetrics) RecordEquity(float64)                {}

type captureIngester struct {
	mu      sync.Mutex
	batches [][]models.RawTick
}

func (c *captureIngester) IngestMarketData(_ context.Context, raw []models.RawTick) []models.CleanedTick {
	c.mu.Lock()
	c.batches = append(c.batches, raw)
	c.mu.Unlock()
	return nil
}

func (c *captureIngester) all() [][]models.RawTick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]models.RawTick(nil), c.batches...)
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) (*FeedPipeline, *captureIngester) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	ing := &captureIngester{}
	return NewFeedPipeline(l, noopMetrics{}, nil, ing, opts...), ing
}

func tick(symbol string) models.RawTick {
	return models.RawTick{Symbol: symbol, Bid: 99.9, Ask: 100.1, Last: 100, Timestamp: time.Now()}
}

func TestPipelineFlushesFullBatch(t *testing.T) {
	p, ing := newTestPipeline(t, WithBatch(2, time.Hour), WithMaxRPS(0))
	ctx := context.Background()

	p.Offer(ctx, tick("AAPL"))
	if got := len(ing.all()); got != 0 {
		t.Fatalf("flushed early: %d batches", got)
	}

	p.Offer(ctx, tick("MSFT"))
	batches := ing.all()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %+v, want one batch of 2", batches)
	}
}

func TestPipelineManualFlush(t *testing.T) {
	p, ing := newTestPipeline(t, WithBatch(100, time.Hour), WithMaxRPS(0))
	ctx := context.Background()

	p.Offer(ctx, tick("AAPL"))
	p.Flush(ctx)
	p.Flush(ctx) // empty flush is a no-op

	batches := ing.all()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("batches = %+v, want one batch of 1", batches)
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	p, _ := newTestPipeline(t, WithBatch(100, time.Hour), WithMaxRPS(1))
	ctx := context.Background()

	if !p.Offer(ctx, tick("AAPL")) {
		t.Fatal("first tick should pass")
	}
	if p.Offer(ctx, tick("AAPL")) {
		t.Fatal("second immediate tick should be shed")
	}
	// Other symbols have their own budget.
	if !p.Offer(ctx, tick("MSFT")) {
		t.Fatal("different symbol should pass")
	}
}

func TestPipelineRejectsEmptySymbol(t *testing.T) {
	p, ing := newTestPipeline(t, WithMaxRPS(0))
	ctx := context.Background()

	if p.Offer(ctx, models.RawTick{}) {
		t.Fatal("empty symbol should be rejected")
	}
	p.Flush(ctx)
	if got := len(ing.all()); got != 0 {
		t.Fatalf("batches = %d, want 0", got)
	}
}
