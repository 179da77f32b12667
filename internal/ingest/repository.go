package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PortPulse/internal/domain/events"
	"PortPulse/internal/domain/models"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/pkg/bus"
	"PortPulse/pkg/cache"
	"PortPulse/pkg/logger"
)

// ErrEmptyImport is returned when a tabular import has no headers or no rows.
var ErrEmptyImport = errors.New("import requires at least one header and one row")

// ImportCategory is the lifecycle category tabular imports are stored under.
const ImportCategory = "imports"

// equityTolerance is the allowed absolute gap between reported equity and
// cash plus the sum of position market values (one currency unit).
const equityTolerance = 1.0

// Repository ingests raw feeds, validates and cleans them, and owns the
// bounded buffer of validated snapshots. Validated snapshots are published by
// reference and must be treated as read-only by subscribers.
type Repository struct {
	hub   *bus.Hub
	log   *logger.Logger
	rec   domrepo.Metrics
	store domrepo.RecordStore
	now   func() time.Time

	tickCache cache.Service
	tickTTL   time.Duration

	mu    sync.Mutex
	ring  *ring
	ticks map[string]models.CleanedTick
}

// Option configures a Repository.
type Option func(*Repository)

// WithRecordStore routes accepted tabular imports into a lifecycle store.
func WithRecordStore(s domrepo.RecordStore) Option {
	return func(r *Repository) { r.store = s }
}

// WithTickCache mirrors the latest cleaned tick per symbol into a cache.
func WithTickCache(c cache.Service, ttl time.Duration) Option {
	return func(r *Repository) {
		r.tickCache = c
		r.tickTTL = ttl
	}
}

// WithRingCapacity overrides the validated-snapshot buffer size.
func WithRingCapacity(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.ring = newRing(n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New creates an ingestion repository.
func New(hub *bus.Hub, log *logger.Logger, rec domrepo.Metrics, opts ...Option) *Repository {
	r := &Repository{
		hub:   hub,
		log:   log,
		rec:   rec,
		now:   time.Now,
		ring:  newRing(100),
		ticks: make(map[string]models.CleanedTick),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IngestSnapshot validates a raw snapshot and publishes the result. Problems
// are recorded on the snapshot instead of discarding it: a failed check
// degrades the record, it never drops it.
func (r *Repository) IngestSnapshot(ctx context.Context, raw models.RawSnapshot) models.ValidatedSnapshot {
	start := r.now()
	var errs []string

	if !finite(raw.Equity) {
		errs = append(errs, "equity is not a finite number")
		r.rec.RecordValidationError("non_finite")
	}
	if !finite(raw.Cash) {
		errs = append(errs, "cash is not a finite number")
		r.rec.RecordValidationError("non_finite")
	}

	positions := make([]models.ValidatedPosition, 0, len(raw.Positions))
	totalMarketValue := 0.0
	for i, p := range raw.Positions {
		if !finite(p.Quantity) || !finite(p.AvgPrice) || !finite(p.CurrentPrice) {
			errs = append(errs, fmt.Sprintf("position %d (%s): non-finite numeric field", i, p.Symbol))
			r.rec.RecordValidationError("non_finite")
			positions = append(positions, models.ValidatedPosition{RawPosition: p})
			continue
		}
		mv := p.CurrentPrice * p.Quantity
		pnl := (p.CurrentPrice - p.AvgPrice) * p.Quantity
		if p.Side == models.SideShort {
			pnl = -pnl
		}
		totalMarketValue += mv
		positions = append(positions, models.ValidatedPosition{
			RawPosition:   p,
			MarketValue:   mv,
			UnrealizedPnL: pnl,
		})
	}

	for i, o := range raw.Orders {
		if !finite(o.Quantity) || !finite(o.Price) {
			errs = append(errs, fmt.Sprintf("order %d (%s): non-finite numeric field", i, o.Symbol))
			r.rec.RecordValidationError("non_finite")
		}
	}

	// Equity must reconcile with cash plus position market values. A mismatch
	// degrades the snapshot but the record is still kept and published.
	if finite(raw.Equity) && finite(raw.Cash) {
		if gap := math.Abs(raw.Equity - (raw.Cash + totalMarketValue)); gap > equityTolerance {
			errs = append(errs, fmt.Sprintf(
				"equity %.2f does not reconcile with cash %.2f + positions %.2f (gap %.2f)",
				raw.Equity, raw.Cash, totalMarketValue, gap))
			r.rec.RecordValidationError("reconciliation")
		}
	}

	vs := models.ValidatedSnapshot{
		ID:               uuid.NewString(),
		Timestamp:        raw.Timestamp,
		Equity:           raw.Equity,
		Cash:             raw.Cash,
		Positions:        positions,
		Orders:           raw.Orders,
		Validated:        len(errs) == 0,
		ValidationErrors: errs,
		ReceivedAt:       r.now(),
	}

	r.mu.Lock()
	r.ring.push(vs)
	r.mu.Unlock()

	outcome := "validated"
	if !vs.Validated {
		outcome = "degraded"
		r.log.Warn("snapshot degraded",
			logger.String("id", vs.ID),
			logger.Int("errors", len(errs)),
		)
	}
	r.rec.RecordSnapshot(outcome)

	bus.Publish(r.hub, events.SnapshotValidated, vs)
	r.rec.RecordLatency("ingest_snapshot", r.now().Sub(start).Seconds())
	return vs
}

// IngestMarketData cleans a batch of raw ticks. Invalid ticks are dropped
// with a warning; valid ones update the latest-value map and are published as
// a single batch event.
func (r *Repository) IngestMarketData(ctx context.Context, raw []models.RawTick) []models.CleanedTick {
	start := r.now()
	cleaned := make([]models.CleanedTick, 0, len(raw))
	dropped := 0

	for _, t := range raw {
		if t.Symbol == "" || !finite(t.Bid) || !finite(t.Ask) || !finite(t.Last) || !finite(t.Volume) {
			dropped++
			r.log.Warn("dropping invalid tick", logger.String("symbol", t.Symbol))
			continue
		}
		ct := models.CleanedTick{
			Symbol:    strings.ToUpper(t.Symbol),
			Bid:       t.Bid,
			Ask:       t.Ask,
			Last:      t.Last,
			Volume:    t.Volume,
			Spread:    t.Ask - t.Bid,
			Timestamp: t.Timestamp,
		}
		cleaned = append(cleaned, ct)
	}

	if len(cleaned) > 0 {
		r.mu.Lock()
		for _, ct := range cleaned {
			r.ticks[ct.Symbol] = ct
		}
		r.mu.Unlock()

		if r.tickCache != nil {
			for _, ct := range cleaned {
				key := cache.GenerateKey("tick", ct.Symbol)
				if err := r.tickCache.Set(ctx, key, ct, r.tickTTL); err != nil {
					r.log.Debug("tick cache set failed", logger.Error(err))
				}
			}
		}

		bus.Publish(r.hub, events.MarketTicks, cleaned)
	}

	r.rec.RecordTicks(len(cleaned), dropped)
	r.rec.RecordLatency("ingest_ticks", r.now().Sub(start).Seconds())
	return cleaned
}

// IngestTabularImport accepts header/row data. It requires at least one
// header and one row; on failure nothing is stored.
func (r *Repository) IngestTabularImport(ctx context.Context, headers []string, rows [][]string) (models.ImportResult, error) {
	if len(headers) == 0 || len(rows) == 0 {
		return models.ImportResult{}, ErrEmptyImport
	}
	if r.store == nil {
		return models.ImportResult{}, fmt.Errorf("no record store configured for imports")
	}

	items := make([]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = row[i]
			} else {
				m[h] = ""
			}
		}
		items = append(items, m)
	}

	if err := r.store.Append(ctx, ImportCategory, items...); err != nil {
		return models.ImportResult{}, fmt.Errorf("store import: %w", err)
	}

	r.log.Info("tabular import accepted",
		logger.Int("rows", len(rows)),
		logger.Int("columns", len(headers)),
	)
	return models.ImportResult{Category: ImportCategory, Accepted: len(rows)}, nil
}

// Snapshots returns a copy of the buffered validated snapshots, oldest first.
func (r *Repository) Snapshots() []models.ValidatedSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.items()
}

// LatestTick returns the most recent cleaned tick for a symbol.
func (r *Repository) LatestTick(symbol string) (models.CleanedTick, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.ticks[strings.ToUpper(symbol)]
	return t, ok
}

// LatestTicks returns the latest tick per symbol, sorted by symbol.
func (r *Repository) LatestTicks() []models.CleanedTick {
	r.mu.Lock()
	out := make([]models.CleanedTick, 0, len(r.ticks))
	for _, t := range r.ticks {
		out = append(out, t)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
