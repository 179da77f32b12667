package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"PortPulse/pkg/logger"
)

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrQueueClosed = errors.New("job queue closed")
)

// PoolConfig contains the configuration for the worker pool.
type PoolConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // size of the queue
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
}

// PoolOption configures a Pool.
type PoolOption func(*PoolConfig)

// WithWorkers sets the worker count.
func WithWorkers(n int) PoolOption {
	return func(c *PoolConfig) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithQueueSize sets the bounded queue capacity.
func WithQueueSize(n int) PoolOption {
	return func(c *PoolConfig) {
		if n > 0 {
			c.QueueSize = n
		}
	}
}

// WithRetry sets retry limit and delay between attempts.
func WithRetry(limit int, delay time.Duration) PoolOption {
	return func(c *PoolConfig) {
		c.RetryLimit = limit
		c.RetryDelay = delay
	}
}

// Pool runs jobs on a fixed set of workers with a bounded, non-blocking
// queue. A failing job is retried up to the configured limit and then
// dropped with an error log.
type Pool struct {
	cfg    PoolConfig
	ch     chan Job
	log    *logger.Logger
	wg     sync.WaitGroup
	closed sync.Once
}

// NewPool creates a worker pool.
func NewPool(log *logger.Logger, opts ...PoolOption) *Pool {
	cfg := PoolConfig{
		Workers:    2,
		QueueSize:  64,
		RetryLimit: 3,
		RetryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pool{
		cfg: cfg,
		ch:  make(chan Job, cfg.QueueSize),
		log: log,
	}
}

// Start launches the workers; they run until the context is done or the pool
// is stopped.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Enqueue adds a job without blocking.
func (p *Pool) Enqueue(j Job) error {
	select {
	case p.ch <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for in-flight ones to finish.
func (p *Pool) Stop() {
	p.closed.Do(func() { close(p.ch) })
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.ch:
			if !ok {
				return
			}
			p.run(ctx, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, j Job) {
	var err error
	for attempt := 0; attempt <= p.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.RetryDelay):
			}
		}
		if err = j.Run(ctx); err == nil {
			return
		}
		p.log.Warn("job attempt failed",
			logger.String("job", j.Name()),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	p.log.Error("job dropped after retries",
		logger.String("job", j.Name()),
		logger.Error(err),
	)
}
