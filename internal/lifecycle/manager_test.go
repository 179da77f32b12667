package lifecycle

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PortPulse/internal/domain/events"
	"PortPulse/internal/domain/models"
	"PortPulse/pkg/bus"
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func newTestManager(t *testing.T, policy models.TierPolicy, opts ...Option) (*Manager, *bus.Hub, *fakeClock) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	h := bus.New(l)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m := NewManager(l, noopMetrics{}, h, map[string]models.TierPolicy{"trades": policy}, opts...)
	return m, h, clock
}

type payload struct {
	Note string `json:"note"`
}

func TestAppendStartsHot(t *testing.T) {
	m, _, _ := newTestManager(t, models.TierPolicy{HotDays: 7, WarmDays: 30, DeletionDays: 365})

	err := m.Append(context.Background(), "trades", payload{Note: "a"}, payload{Note: "b"})
	require.NoError(t, err)

	recs, err := m.Records("trades")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.Equal(t, models.TierHot, rec.Tier)
		require.Equal(t, "trades", rec.Category)
		require.NotEmpty(t, rec.ID)
	}
}

func TestAppendUnknownCategory(t *testing.T) {
	m, _, _ := newTestManager(t, models.TierPolicy{HotDays: 7})

	err := m.Append(context.Background(), "dividends", payload{Note: "x"})
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestTierProgression(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 7, WarmDays: 30, DeletionDays: 365})
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: "old"}))

	// Inside the hot window nothing moves.
	clock.Advance(days(3))
	m.RunPass(ctx)
	recs, _ := m.Records("trades")
	require.Equal(t, models.TierHot, recs[0].Tier)

	// Past the hot age the record turns warm.
	clock.Advance(days(5))
	m.RunPass(ctx)
	recs, _ = m.Records("trades")
	require.Equal(t, models.TierWarm, recs[0].Tier)

	// Past hot+warm it leaves the live store for an archive.
	clock.Advance(days(31))
	m.RunPass(ctx)
	recs, _ = m.Records("trades")
	require.Empty(t, recs)

	archives := m.SearchArchives("trades", time.Time{}, clock.Now())
	require.Len(t, archives, 1)
	require.Equal(t, 1, archives[0].ItemCount)
}

func TestTransitionsNeverMoveBackward(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 2, DeletionDays: 0})
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "x"}))

	rank := map[models.Tier]int{models.TierHot: 0, models.TierWarm: 1, models.TierCold: 2}
	last := rank[models.TierHot]
	for i := 0; i < 10; i++ {
		clock.Advance(12 * time.Hour)
		m.RunPass(ctx)
		recs, err := m.Records("trades")
		require.NoError(t, err)
		cur := rank[models.TierCold]
		if len(recs) > 0 {
			cur = rank[recs[0].Tier]
		}
		require.GreaterOrEqual(t, cur, last, "tier moved backward on pass %d", i)
		last = cur
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1, DeletionDays: 0})
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "keep"}, payload{Note: "me"}))

	clock.Advance(days(3))
	m.RunPass(ctx)

	archives := m.SearchArchives("trades", time.Time{}, clock.Now())
	require.Len(t, archives, 1)
	meta := archives[0]
	require.Equal(t, 2, meta.ItemCount)
	require.Greater(t, meta.CompressedSize, int64(0))
	require.Equal(t, int64(0), meta.AccessCount)

	recs, err := m.RetrieveFromArchive(ctx, meta.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.Equal(t, models.TierCold, rec.Tier)
	}

	meta, err = m.Archive(meta.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.AccessCount)
	require.False(t, meta.LastAccessed.IsZero())
}

func TestRetrieveUnknownArchive(t *testing.T) {
	m, _, _ := newTestManager(t, models.TierPolicy{HotDays: 1})
	_, err := m.RetrieveFromArchive(context.Background(), "missing")
	require.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestDeletionRequiresPolicy(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1, DeletionDays: 0})
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "forever"}))

	clock.Advance(days(3))
	m.RunPass(ctx)
	require.Len(t, m.SearchArchives("trades", time.Time{}, clock.Now()), 1)

	// Years later the archive is still there with deletion disabled.
	clock.Advance(days(3650))
	m.RunPass(ctx)
	require.Len(t, m.SearchArchives("trades", time.Time{}, clock.Now()), 1)
}

func TestExpiredArchivesDeleted(t *testing.T) {
	m, h, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1, DeletionDays: 10})
	ctx := context.Background()

	var deleted []models.LifecycleEvent
	var mu sync.Mutex
	unsub := bus.Subscribe(h, events.StorageDeleted, func(ev models.LifecycleEvent) {
		mu.Lock()
		deleted = append(deleted, ev)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: "gone"}))

	clock.Advance(days(3))
	m.RunPass(ctx)
	require.Len(t, m.SearchArchives("trades", time.Time{}, clock.Now()), 1)

	clock.Advance(days(20))
	m.RunPass(ctx)
	require.Empty(t, m.SearchArchives("trades", time.Time{}, clock.Now()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deleted, 1)
	require.Equal(t, "trades", deleted[0].Category)
	require.Equal(t, 1, deleted[0].ItemCount)
}

func TestArchivedEventPublished(t *testing.T) {
	m, h, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1})
	ctx := context.Background()

	var archived []models.LifecycleEvent
	var mu sync.Mutex
	unsub := bus.Subscribe(h, events.StorageArchived, func(ev models.LifecycleEvent) {
		mu.Lock()
		archived = append(archived, ev)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: "a"}, payload{Note: "b"}))
	clock.Advance(days(3))
	m.RunPass(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, archived, 1)
	require.Equal(t, 2, archived[0].ItemCount)
}

func TestSearchArchivesByDateRange(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1})
	ctx := context.Background()

	first := clock.Now()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "early"}))
	clock.Advance(days(3))
	m.RunPass(ctx)

	second := clock.Now()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "late"}))
	clock.Advance(days(3))
	m.RunPass(ctx)

	all := m.SearchArchives("trades", first, clock.Now())
	require.Len(t, all, 2)

	// A window covering only the second batch excludes the first archive.
	late := m.SearchArchives("trades", second, clock.Now())
	require.Len(t, late, 1)

	require.Empty(t, m.SearchArchives("dividends", first, clock.Now()))
}

func TestCompressRoundTrip(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 30})
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "squeeze me down to size"}))

	clock.Advance(days(2))
	m.RunPass(ctx)
	require.NoError(t, m.compressCategory("trades"))

	recs, err := m.Records("trades")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Compressed)

	plain, err := InflatePayload(recs[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"note":"squeeze me down to size"}`, string(plain))

	// Compressed records still archive cleanly.
	clock.Advance(days(30))
	m.RunPass(ctx)
	archives := m.SearchArchives("trades", time.Time{}, clock.Now())
	require.Len(t, archives, 1)
	out, err := m.RetrieveFromArchive(ctx, archives[0].ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, out[0].Compressed)
	require.JSONEq(t, `{"note":"squeeze me down to size"}`, string(out[0].Payload))
}

func TestCompressSkipsHotRecords(t *testing.T) {
	m, _, _ := newTestManager(t, models.TierPolicy{HotDays: 7, WarmDays: 30})
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "trades", payload{Note: "fresh"}))

	require.NoError(t, m.compressCategory("trades"))

	recs, err := m.Records("trades")
	require.NoError(t, err)
	require.False(t, recs[0].Compressed)
}

func TestSweepEnqueuesCompressionPastThreshold(t *testing.T) {
	// ~110 bytes of threshold against a multi-KB payload.
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 365, CompressionThresholdMB: 0.0001})
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: strings.Repeat("tick ", 1024)}))
	clock.Advance(days(2))

	m.pool.Start(ctx)
	m.RunPass(ctx)
	m.pool.Stop() // waits for the queued compression job

	recs, err := m.Records("trades")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, models.TierWarm, recs[0].Tier)
	require.True(t, recs[0].Compressed)

	plain, err := InflatePayload(recs[0])
	require.NoError(t, err)
	require.Contains(t, string(plain), "tick tick")
}

func TestSweepSkipsCompressionUnderThreshold(t *testing.T) {
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 365, CompressionThresholdMB: 64})
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: "small"}))
	clock.Advance(days(2))

	m.pool.Start(ctx)
	m.RunPass(ctx)
	m.pool.Stop()

	recs, err := m.Records("trades")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, models.TierWarm, recs[0].Tier)
	require.False(t, recs[0].Compressed)
}

type sinkRecord struct {
	meta models.ArchiveMetadata
	blob []byte
}

type memorySink struct {
	mu    sync.Mutex
	saved map[string]sinkRecord
}

func newMemorySink() *memorySink {
	return &memorySink{saved: make(map[string]sinkRecord)}
}

func (s *memorySink) SaveArchive(_ context.Context, meta models.ArchiveMetadata, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[meta.ID] = sinkRecord{meta: meta, blob: append([]byte(nil), blob...)}
	return nil
}

func (s *memorySink) LoadArchive(_ context.Context, id string) (models.ArchiveMetadata, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.saved[id]
	if !ok {
		return models.ArchiveMetadata{}, nil, ErrArchiveNotFound
	}
	return rec.meta, rec.blob, nil
}

func (s *memorySink) Health(context.Context) error { return nil }
func (s *memorySink) Close() error                 { return nil }

func TestRetrieveRecoversArchiveFromSink(t *testing.T) {
	sink := newMemorySink()
	m, _, clock := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1}, WithSink(sink))
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "trades", payload{Note: "durable"}))
	clock.Advance(days(3))
	m.RunPass(ctx)

	archives := m.SearchArchives("trades", time.Time{}, clock.Now())
	require.Len(t, archives, 1)
	id := archives[0].ID
	require.Contains(t, sink.saved, id)

	// A fresh manager sharing the sink stands in for the process after a
	// restart: its in-memory index is empty.
	restarted, _, _ := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1}, WithSink(sink))
	recs, err := restarted.RetrieveFromArchive(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.JSONEq(t, `{"note":"durable"}`, string(recs[0].Payload))

	// Recovery reindexes the archive for later metadata lookups.
	meta, err := restarted.Archive(id)
	require.NoError(t, err)
	require.EqualValues(t, 1, meta.AccessCount)
}

func TestRetrieveUnknownArchiveWithSink(t *testing.T) {
	m, _, _ := newTestManager(t, models.TierPolicy{HotDays: 1, WarmDays: 1}, WithSink(newMemorySink()))
	_, err := m.RetrieveFromArchive(context.Background(), "missing")
	require.ErrorIs(t, err, ErrArchiveNotFound)
}
