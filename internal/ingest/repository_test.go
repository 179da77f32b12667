package ingest

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

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

type fakeStore struct {
	categories []string
	items      int
	fail       bool
}

func (f *fakeStore) Append(_ context.Context, category string, items ...any) error {
	if f.fail {
		return errors.New("store down")
	}
	f.categories = append(f.categories, category)
	f.items += len(items)
	return nil
}

func newTestRepository(t *testing.T, opts ...Option) (*Repository, *bus.Hub) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	h := bus.New(l)
	return New(h, l, noopMetrics{}, opts...), h
}

func TestIngestSnapshotReconciles(t *testing.T) {
	r, h := newTestRepository(t)

	var published *models.ValidatedSnapshot
	bus.Subscribe(h, events.SnapshotValidated, func(s models.ValidatedSnapshot) {
		published = &s
	})

	vs := r.IngestSnapshot(context.Background(), models.RawSnapshot{
		Timestamp: time.Now(),
		Equity:    10000,
		Cash:      2000,
		Positions: []models.RawPosition{
			{Symbol: "AAPL", Quantity: 50, AvgPrice: 150, CurrentPrice: 160, Side: models.SideLong},
		},
	})

	if !vs.Validated {
		t.Fatalf("expected validated snapshot, errors: %v", vs.ValidationErrors)
	}
	if vs.Positions[0].MarketValue != 8000 {
		t.Fatalf("market value = %v, want 8000", vs.Positions[0].MarketValue)
	}
	if vs.Positions[0].UnrealizedPnL != 500 {
		t.Fatalf("unrealized pnl = %v, want 500", vs.Positions[0].UnrealizedPnL)
	}
	if vs.ID == "" {
		t.Fatalf("expected snapshot id")
	}
	if published == nil || published.ID != vs.ID {
		t.Fatalf("snapshot not published")
	}
}

func TestIngestSnapshotReconciliationMismatchDegrades(t *testing.T) {
	r, _ := newTestRepository(t)

	vs := r.IngestSnapshot(context.Background(), models.RawSnapshot{
		Timestamp: time.Now(),
		Equity:    10000,
		Cash:      2000, // no positions: gap of 8000
	})

	if vs.Validated {
		t.Fatalf("expected degraded snapshot")
	}
	if len(vs.ValidationErrors) == 0 {
		t.Fatalf("expected a validation error")
	}
	if !strings.Contains(vs.ValidationErrors[0], "reconcile") {
		t.Fatalf("unexpected error: %q", vs.ValidationErrors[0])
	}
	// degraded snapshots are still retained
	if got := len(r.Snapshots()); got != 1 {
		t.Fatalf("snapshot count = %d, want 1", got)
	}
}

func TestIngestSnapshotNonFiniteFields(t *testing.T) {
	r, _ := newTestRepository(t)

	vs := r.IngestSnapshot(context.Background(), models.RawSnapshot{
		Timestamp: time.Now(),
		Equity:    math.NaN(),
		Cash:      100,
		Positions: []models.RawPosition{
			{Symbol: "TSLA", Quantity: 1, AvgPrice: math.Inf(1), CurrentPrice: 100},
		},
	})

	if vs.Validated {
		t.Fatalf("expected degraded snapshot")
	}
	if len(vs.ValidationErrors) < 2 {
		t.Fatalf("expected errors for equity and position, got %v", vs.ValidationErrors)
	}
}

func TestSnapshotRingEvictsOldestFirst(t *testing.T) {
	r, _ := newTestRepository(t, WithRingCapacity(3))

	for i := 0; i < 4; i++ {
		r.IngestSnapshot(context.Background(), models.RawSnapshot{
			Timestamp: time.Now(),
			Equity:    float64(1000 + i),
			Cash:      float64(1000 + i),
		})
	}

	got := r.Snapshots()
	if len(got) != 3 {
		t.Fatalf("ring length = %d, want 3", len(got))
	}
	// the first insert (equity 1000) must be gone
	if got[0].Equity != 1001 || got[2].Equity != 1003 {
		t.Fatalf("unexpected eviction order: first=%v last=%v", got[0].Equity, got[2].Equity)
	}
}

func TestIngestMarketDataCleansTicks(t *testing.T) {
	r, h := newTestRepository(t)

	var batches int
	bus.Subscribe(h, events.MarketTicks, func(ts []models.CleanedTick) { batches++ })

	cleaned := r.IngestMarketData(context.Background(), []models.RawTick{
		{Symbol: "aapl", Bid: 159.9, Ask: 160.1, Last: 160, Volume: 10, Timestamp: time.Now()},
		{Symbol: "msft", Bid: math.NaN(), Ask: 400, Last: 400, Volume: 5, Timestamp: time.Now()},
		{Symbol: "", Bid: 1, Ask: 2, Last: 1.5, Volume: 1, Timestamp: time.Now()},
	})

	if len(cleaned) != 1 {
		t.Fatalf("cleaned = %d, want 1", len(cleaned))
	}
	if cleaned[0].Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL", cleaned[0].Symbol)
	}
	if math.Abs(cleaned[0].Spread-0.2) > 1e-9 {
		t.Fatalf("spread = %v, want 0.2", cleaned[0].Spread)
	}
	if batches != 1 {
		t.Fatalf("expected one batch event, got %d", batches)
	}
	if _, ok := r.LatestTick("AAPL"); !ok {
		t.Fatalf("latest tick missing")
	}
}

func TestIngestMarketDataAllInvalidPublishesNothing(t *testing.T) {
	r, h := newTestRepository(t)

	var batches int
	bus.Subscribe(h, events.MarketTicks, func([]models.CleanedTick) { batches++ })

	cleaned := r.IngestMarketData(context.Background(), []models.RawTick{
		{Symbol: "X", Bid: math.Inf(-1), Ask: 1, Last: 1, Volume: 1},
	})
	if len(cleaned) != 0 || batches != 0 {
		t.Fatalf("expected nothing published, cleaned=%d batches=%d", len(cleaned), batches)
	}
}

func TestIngestTabularImport(t *testing.T) {
	store := &fakeStore{}
	r, _ := newTestRepository(t, WithRecordStore(store))

	if _, err := r.IngestTabularImport(context.Background(), nil, [][]string{{"a"}}); !errors.Is(err, ErrEmptyImport) {
		t.Fatalf("want ErrEmptyImport for missing headers, got %v", err)
	}
	if _, err := r.IngestTabularImport(context.Background(), []string{"h"}, nil); !errors.Is(err, ErrEmptyImport) {
		t.Fatalf("want ErrEmptyImport for missing rows, got %v", err)
	}
	if store.items != 0 {
		t.Fatalf("failed import must store nothing, stored %d", store.items)
	}

	res, err := r.IngestTabularImport(context.Background(),
		[]string{"symbol", "qty"},
		[][]string{{"AAPL", "50"}, {"MSFT"}},
	)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Accepted != 2 || store.items != 2 {
		t.Fatalf("accepted=%d stored=%d, want 2/2", res.Accepted, store.items)
	}
	if store.categories[0] != ImportCategory {
		t.Fatalf("category = %q", store.categories[0])
	}
}

func TestIngestTabularImportStoreFailure(t *testing.T) {
	store := &fakeStore{fail: true}
	r, _ := newTestRepository(t, WithRecordStore(store))

	_, err := r.IngestTabularImport(context.Background(), []string{"h"}, [][]string{{"v"}})
	if err == nil {
		t.Fatalf("expected store error")
	}
	if store.items != 0 {
		t.Fatalf("failed import must store nothing")
	}
}
