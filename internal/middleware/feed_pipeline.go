// Package middleware contains the glue between the market feed and the
// ingestion layer.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PortPulse/internal/domain/models"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/pkg/logger"
)

// Ingester is the ingestion surface the pipeline feeds into.
type Ingester interface {
	IngestMarketData(ctx context.Context, raw []models.RawTick) []models.CleanedTick
}

// FeedPipeline sits between a MarketStream and ingestion. It throttles per
// symbol, batches ticks, and flushes on size or on a timer. Stream errors
// trigger reconnects with the client's configured delay.
type FeedPipeline struct {
	log      *logger.Logger
	metrics  domrepo.Metrics
	stream   domrepo.MarketStream
	ingester Ingester

	maxRPS     int
	batchSize  int
	flushEvery time.Duration
	throttle   *symbolThrottle

	mu  sync.Mutex
	buf []models.RawTick
}

// PipelineOption configures a FeedPipeline.
type PipelineOption func(*FeedPipeline)

// WithMaxRPS caps accepted ticks per second per symbol. Zero disables the
// throttle.
func WithMaxRPS(n int) PipelineOption {
	return func(p *FeedPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBatch sets the flush batch size and timer.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *FeedPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// NewFeedPipeline creates a pipeline.
func NewFeedPipeline(log *logger.Logger, metrics domrepo.Metrics, stream domrepo.MarketStream, ingester Ingester, opts ...PipelineOption) *FeedPipeline {
	p := &FeedPipeline{
		log:        log,
		metrics:    metrics,
		stream:     stream,
		ingester:   ingester,
		maxRPS:     20,
		batchSize:  100,
		flushEvery: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	// Bucket capacity equals one second of budget, so a burst after a quiet
	// spell is not shed.
	p.throttle = newSymbolThrottle(float64(p.maxRPS), float64(p.maxRPS))
	p.buf = make([]models.RawTick, 0, p.batchSize)
	return p
}

// Run connects the stream and pumps it into ingestion until the context is
// done. Read errors reconnect instead of returning.
func (p *FeedPipeline) Run(ctx context.Context) error {
	if err := p.stream.Connect(ctx); err != nil {
		return fmt.Errorf("feed pipeline: %w", err)
	}
	if err := p.stream.Subscribe(ctx); err != nil {
		return fmt.Errorf("feed pipeline: %w", err)
	}
	defer p.stream.Close()

	flush := time.NewTicker(p.flushEvery)
	defer flush.Stop()

	for {
		ticks, errs := p.stream.Read(ctx)
	stream:
		for {
			select {
			case <-ctx.Done():
				p.Flush(context.Background())
				return ctx.Err()
			case <-flush.C:
				p.Flush(ctx)
			case tick, ok := <-ticks:
				if !ok {
					break stream
				}
				p.Offer(ctx, tick)
			case err, ok := <-errs:
				if !ok {
					break stream
				}
				p.log.Warn("feed stream error", logger.Error(err))
			}
		}

		p.Flush(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Info("feed reconnecting")
		if err := p.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("feed reconnect failed", logger.Error(err))
		}
	}
}

// Offer throttles and buffers one tick, flushing when the batch fills.
// Returns false when the tick was shed.
func (p *FeedPipeline) Offer(ctx context.Context, tick models.RawTick) bool {
	if tick.Symbol == "" {
		p.metrics.RecordValidationError("feed_symbol_empty")
		return false
	}

	if !p.throttle.Allow(tick.Symbol, time.Now()) {
		p.metrics.RecordValidationError("feed_throttled")
		return false
	}

	p.mu.Lock()
	p.buf = append(p.buf, tick)
	full := len(p.buf) >= p.batchSize
	p.mu.Unlock()

	if full {
		p.Flush(ctx)
	}
	return true
}

// Flush hands the buffered batch to ingestion.
func (p *FeedPipeline) Flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buf) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buf
	p.buf = make([]models.RawTick, 0, p.batchSize)
	p.mu.Unlock()

	start := time.Now()
	p.ingester.IngestMarketData(ctx, batch)
	p.metrics.RecordLatency("feed_flush", time.Since(start).Seconds())
}
