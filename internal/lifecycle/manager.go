// Package lifecycle moves stored records through age-based tiers. Records
// start hot, turn warm after their category's hot-tier age, are gzipped into
// cold archives after the warm-tier age, and archives past the deletion age
// are removed. Transitions only ever move forward.
package lifecycle

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"sync"
	"time"

	"PortPulse/internal/domain/events"
	"PortPulse/internal/domain/models"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/pkg/bus"
	"PortPulse/pkg/logger"
	"PortPulse/pkg/queue"
)

const defaultSweepInterval = 6 * time.Hour

// Manager owns the tiered stores of every configured category and runs the
// scheduled lifecycle passes over them.
type Manager struct {
	log      *logger.Logger
	rec      domrepo.Metrics
	hub      *bus.Hub
	sink     domrepo.ArchiveSink
	pool     *queue.Pool
	interval time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	cats map[string]*categoryStore

	archMu   sync.RWMutex
	archives map[string]*archiveEntry
}

// Option configures a Manager.
type Option func(*Manager)

// WithSink mirrors finished archives to durable storage. Sink failures are
// logged; the in-memory archive stays authoritative.
func WithSink(sink domrepo.ArchiveSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithSweepInterval overrides the pass schedule.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithCompressionWorkers sizes the background compression pool.
func WithCompressionWorkers(n int) Option {
	return func(m *Manager) {
		m.pool = queue.NewPool(m.log, queue.WithWorkers(n))
	}
}

// WithClock injects the time source used for record ages. Tests use this to
// move records through tiers without waiting.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager for the given per-category policies.
func NewManager(log *logger.Logger, rec domrepo.Metrics, hub *bus.Hub, policies map[string]models.TierPolicy, opts ...Option) *Manager {
	m := &Manager{
		log:      log,
		rec:      rec,
		hub:      hub,
		interval: defaultSweepInterval,
		now:      time.Now,
		cats:     make(map[string]*categoryStore, len(policies)),
		archives: make(map[string]*archiveEntry),
	}
	for name, policy := range policies {
		m.cats[name] = &categoryStore{policy: policy}
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = queue.NewPool(log)
	}
	return m
}

// Start runs scheduled passes until the context is done.
func (m *Manager) Start(ctx context.Context) {
	m.pool.Start(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("lifecycle manager started",
		logger.Duration("interval", m.interval),
		logger.Int("categories", len(m.cats)))

	for {
		select {
		case <-ctx.Done():
			m.pool.Stop()
			m.log.Info("lifecycle manager stopped")
			return
		case <-ticker.C:
			m.RunPass(ctx)
		}
	}
}

// RunPass sweeps every category once. Categories are swept in parallel;
// passes over the same category are serialized by the store mutex, so an
// overlapping manual pass cannot interleave with a scheduled one.
func (m *Manager) RunPass(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.cats))
	for name := range m.cats {
		names = append(names, name)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			m.sweepCategory(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (m *Manager) sweepCategory(ctx context.Context, name string) {
	cs, err := m.category(name)
	if err != nil {
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := m.now()
	policy := cs.policy
	warmCutoff := float64(policy.HotDays)
	archiveCutoff := float64(policy.HotDays + policy.WarmDays)

	var warmed int
	live := cs.records[:0]
	var toArchive []models.StoredRecord
	for _, rec := range cs.records {
		age := ageDays(now, rec.CreatedAt)
		switch {
		case age > archiveCutoff:
			toArchive = append(toArchive, rec)
		case rec.Tier == models.TierHot && age > warmCutoff:
			rec.Tier = models.TierWarm
			warmed++
			live = append(live, rec)
		default:
			live = append(live, rec)
		}
	}

	if len(toArchive) > 0 {
		meta, err := m.createArchive(ctx, name, toArchive)
		if err != nil {
			// Leave the batch in the live store; the next pass retries.
			m.log.Error("archive pass failed", logger.String("category", name), logger.Error(err))
			live = append(live, toArchive...)
		} else {
			var freed int64
			for _, rec := range toArchive {
				freed += int64(len(rec.Payload))
			}
			cs.liveBytes -= freed
			m.rec.RecordLifecycle(name, "archived", meta.ItemCount)
			m.log.Info("archived batch",
				logger.String("category", name),
				logger.String("archive_id", meta.ID),
				logger.Int("items", meta.ItemCount),
				logger.Int64("compressed_bytes", meta.CompressedSize))
			bus.Publish(m.hub, events.StorageArchived, models.LifecycleEvent{Category: name, ItemCount: meta.ItemCount})
		}
	}
	cs.records = live

	if warmed > 0 {
		m.rec.RecordLifecycle(name, "warmed", warmed)
	}

	m.deleteExpiredArchives(name, policy, now)

	if policy.CompressionThresholdMB > 0 &&
		float64(cs.liveBytes)/(1024*1024) > policy.CompressionThresholdMB {
		job := queue.JobFunc{
			JobName: "compress-" + name,
			Fn:      func(ctx context.Context) error { return m.compressCategory(name) },
		}
		if err := m.pool.Enqueue(job); err != nil {
			m.log.Warn("compression job not queued", logger.String("category", name), logger.Error(err))
		}
	}
}

// deleteExpiredArchives removes archives whose newest record is past the
// category's deletion age. A zero DeletionDays disables deletion entirely.
func (m *Manager) deleteExpiredArchives(name string, policy models.TierPolicy, now time.Time) {
	if policy.DeletionDays <= 0 {
		return
	}

	var deleted int
	m.archMu.Lock()
	for id, entry := range m.archives {
		if entry.meta.Category != name {
			continue
		}
		if ageDays(now, entry.meta.To) <= float64(policy.DeletionDays) {
			continue
		}
		m.log.Info("deleting expired archive",
			logger.String("audit", "lifecycle_delete"),
			logger.String("archive_id", id),
			logger.String("category", name),
			logger.Int("items", entry.meta.ItemCount),
			logger.String("from", entry.meta.From.Format(time.RFC3339)),
			logger.String("to", entry.meta.To.Format(time.RFC3339)))
		deleted += entry.meta.ItemCount
		delete(m.archives, id)
	}
	m.archMu.Unlock()

	if deleted > 0 {
		m.rec.RecordLifecycle(name, "deleted", deleted)
		bus.Publish(m.hub, events.StorageDeleted, models.LifecycleEvent{Category: name, ItemCount: deleted})
	}
}

// compressCategory gzips the payloads of uncompressed warm records in place.
// Hot records are never touched; readers of a compressed record must inflate
// its payload via InflatePayload.
func (m *Manager) compressCategory(name string) error {
	cs, err := m.category(name)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	var compressed int
	for i := range cs.records {
		rec := &cs.records[i]
		if rec.Tier != models.TierWarm || rec.Compressed {
			continue
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(rec.Payload); err != nil {
			return fmt.Errorf("compress record %s: %w", rec.ID, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress record %s: %w", rec.ID, err)
		}
		cs.liveBytes += int64(buf.Len()) - int64(len(rec.Payload))
		rec.Payload = buf.Bytes()
		rec.Compressed = true
		compressed++
	}

	if compressed > 0 {
		m.rec.RecordLifecycle(name, "compressed", compressed)
		m.log.Info("compressed warm records",
			logger.String("category", name),
			logger.Int("items", compressed))
	}
	return nil
}

// InflatePayload returns the record payload, decompressing it when the
// record was compressed in place.
func InflatePayload(rec models.StoredRecord) ([]byte, error) {
	if !rec.Compressed {
		return rec.Payload, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(rec.Payload))
	if err != nil {
		return nil, fmt.Errorf("open record %s: %w", rec.ID, err)
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("inflate record %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}
