// Package aggregate maintains the single authoritative portfolio view and the
// risk metrics derived from it. Only this component writes that state, and
// only in response to a validated snapshot.
package aggregate

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"PortPulse/internal/domain/events"
	"PortPulse/internal/domain/models"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/pkg/bus"
	"PortPulse/pkg/logger"
)

var (
	// ErrNoState means no snapshot has been aggregated yet.
	ErrNoState = errors.New("no portfolio state aggregated yet")

	// ErrAlertNotFound means the alert id is unknown or already evicted.
	ErrAlertNotFound = errors.New("alert not found")
)

// Config holds the alert-generation thresholds. The values ship with fixed
// policy defaults but are deployment-configurable.
type Config struct {
	ConcentrationAlertThreshold float64 // concentration risk above this raises a high-severity alert
	LossAlertPct                float64 // position pnl% below this raises a medium risk alert
	GainAlertPct                float64 // position pnl% above this raises a low opportunity alert
}

// DefaultConfig returns the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		ConcentrationAlertThreshold: 0.5,
		LossAlertPct:                -10,
		GainAlertPct:                20,
	}
}

// BID aggregates validated snapshots into the current portfolio view, risk
// metrics and alert log.
type BID struct {
	cfg   Config
	hub   *bus.Hub
	log   *logger.Logger
	rec   domrepo.Metrics
	model Model
	now   func() time.Time

	mu             sync.RWMutex
	hasView        bool
	view           models.PortfolioView
	metrics        models.RiskMetrics
	alerts         []models.Alert // newest first
	alertCap       int
	equityHist     []float64 // bounded window, oldest first
	equityCap      int
	lastSnapshotID string
	dayKey         string
	dayStartEquity float64

	unsub func()
}

// Option configures a BID.
type Option func(*BID)

// WithModel overrides the risk model.
func WithModel(m Model) Option {
	return func(b *BID) { b.model = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *BID) { b.now = now }
}

// WithAlertCapacity overrides the bounded alert log size.
func WithAlertCapacity(n int) Option {
	return func(b *BID) {
		if n > 0 {
			b.alertCap = n
		}
	}
}

// WithEquityWindow overrides how many equity points are retained for the
// risk model.
func WithEquityWindow(n int) Option {
	return func(b *BID) {
		if n > 0 {
			b.equityCap = n
		}
	}
}

// New creates the aggregation component and subscribes it to validated
// snapshots on the hub.
func New(cfg Config, hub *bus.Hub, log *logger.Logger, rec domrepo.Metrics, opts ...Option) *BID {
	b := &BID{
		cfg:       cfg,
		hub:       hub,
		log:       log,
		rec:       rec,
		model:     NewHistoryModel(),
		now:       time.Now,
		alertCap:  100,
		equityCap: 100,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.unsub = bus.Subscribe(hub, events.SnapshotValidated, b.OnSnapshot)
	return b
}

// Close detaches the component from the hub.
func (b *BID) Close() {
	if b.unsub != nil {
		b.unsub()
	}
}

// OnSnapshot rebuilds the whole portfolio view and risk metrics from a
// validated snapshot. Fields are never patched individually. Replaying the
// same snapshot reproduces the same state and raises no duplicate alerts.
func (b *BID) OnSnapshot(s models.ValidatedSnapshot) {
	start := b.now()

	b.mu.Lock()
	replay := s.ID == b.lastSnapshotID && b.lastSnapshotID != ""
	if !replay {
		if day := s.Timestamp.UTC().Format("2006-01-02"); day != b.dayKey {
			b.dayKey = day
			b.dayStartEquity = s.Equity
		}
		b.equityHist = append(b.equityHist, s.Equity)
		if len(b.equityHist) > b.equityCap {
			n := copy(b.equityHist, b.equityHist[len(b.equityHist)-b.equityCap:])
			b.equityHist = b.equityHist[:n]
		}
	}

	view := b.buildView(s)
	metrics := b.buildMetrics(view)

	var raised []models.Alert
	if !replay {
		raised = b.generateAlerts(view, metrics)
		if len(raised) > 0 {
			b.alerts = append(raised, b.alerts...)
			if len(b.alerts) > b.alertCap {
				b.alerts = b.alerts[:b.alertCap]
			}
		}
	}

	b.view = view
	b.metrics = metrics
	b.hasView = true
	b.lastSnapshotID = s.ID
	b.mu.Unlock()

	b.rec.RecordEquity(view.TotalEquity)
	for _, a := range raised {
		b.rec.RecordAlert(string(a.Severity))
		bus.Publish(b.hub, events.AlertRaised, a)
	}
	bus.Publish(b.hub, events.StateUpdated, models.StateUpdate{View: view, Metrics: metrics})
	b.rec.RecordLatency("aggregate", b.now().Sub(start).Seconds())
}

func (b *BID) buildView(s models.ValidatedSnapshot) models.PortfolioView {
	totalPositionValue := 0.0
	for _, p := range s.Positions {
		totalPositionValue += p.MarketValue
	}
	totalValue := totalPositionValue + s.Cash

	positions := make([]models.Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		pos := models.Position{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			AvgPrice:      p.AvgPrice,
			CurrentPrice:  p.CurrentPrice,
			Side:          p.Side,
			MarketValue:   p.MarketValue,
			UnrealizedPnL: p.UnrealizedPnL,
		}
		if totalValue > 0 {
			pos.Allocation = p.MarketValue / totalValue * 100
		}
		if basis := p.AvgPrice * p.Quantity; basis != 0 {
			pos.UnrealizedPnLPct = p.UnrealizedPnL / basis * 100
		}
		positions = append(positions, pos)
	}

	return models.PortfolioView{
		SnapshotID:     s.ID,
		TotalEquity:    s.Equity,
		Cash:           s.Cash,
		Positions:      positions,
		DayStartEquity: b.dayStartEquity,
		DailyPnL:       s.Equity - b.dayStartEquity,
		DataQuality:    b.classify(s),
		LastUpdated:    b.now(),
	}
}

func (b *BID) classify(s models.ValidatedSnapshot) models.DataQuality {
	if !s.Validated {
		return models.QualityPoor
	}
	switch age := b.now().Sub(s.Timestamp); {
	case age < 5*time.Minute:
		return models.QualityExcellent
	case age < 15*time.Minute:
		return models.QualityGood
	default:
		return models.QualityStale
	}
}

func (b *BID) buildMetrics(view models.PortfolioView) models.RiskMetrics {
	concentration := 0.0
	largest := ""
	largestPct := 0.0
	for _, p := range view.Positions {
		w := p.Allocation / 100
		concentration += w * w
		if p.Allocation > largestPct {
			largestPct = p.Allocation
			largest = p.Symbol
		}
	}

	out := b.model.Compute(b.equityHist)
	return models.RiskMetrics{
		Volatility:         out.Volatility,
		SharpeRatio:        out.SharpeRatio,
		MaxDrawdown:        out.MaxDrawdown,
		Beta:               out.Beta,
		ConcentrationRisk:  concentration,
		LargestPosition:    largest,
		LargestPositionPct: largestPct,
		ComputedAt:         b.now(),
	}
}

func (b *BID) generateAlerts(view models.PortfolioView, metrics models.RiskMetrics) []models.Alert {
	var alerts []models.Alert

	if metrics.ConcentrationRisk > b.cfg.ConcentrationAlertThreshold {
		alerts = append(alerts, b.newAlert(models.AlertRisk, models.SeverityHigh,
			"portfolio concentration risk above threshold", metrics.LargestPosition))
	}
	for _, p := range view.Positions {
		if p.UnrealizedPnLPct < b.cfg.LossAlertPct {
			alerts = append(alerts, b.newAlert(models.AlertRisk, models.SeverityMedium,
				"position unrealized loss beyond limit", p.Symbol))
		} else if p.UnrealizedPnLPct > b.cfg.GainAlertPct {
			alerts = append(alerts, b.newAlert(models.AlertOpportunity, models.SeverityLow,
				"position unrealized gain above target", p.Symbol))
		}
	}
	return alerts
}

func (b *BID) newAlert(t models.AlertType, sev models.Severity, msg, symbol string) models.Alert {
	return models.Alert{
		ID:        uuid.NewString(),
		Type:      t,
		Severity:  sev,
		Message:   msg,
		Symbol:    symbol,
		CreatedAt: b.now(),
	}
}

// View returns a copy of the current portfolio view.
func (b *BID) View() (models.PortfolioView, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasView {
		return models.PortfolioView{}, ErrNoState
	}
	v := b.view
	v.Positions = append([]models.Position(nil), b.view.Positions...)
	return v, nil
}

// RiskMetrics returns a copy of the current risk metrics.
func (b *BID) RiskMetrics() (models.RiskMetrics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasView {
		return models.RiskMetrics{}, ErrNoState
	}
	return b.metrics, nil
}

// Alerts returns a copy of the alert log, newest first.
func (b *BID) Alerts() []models.Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.Alert(nil), b.alerts...)
}

// Acknowledge marks an alert acknowledged. It is the only mutation allowed
// on an alert after creation.
func (b *BID) Acknowledge(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			b.alerts[i].Acknowledged = true
			return nil
		}
	}
	return ErrAlertNotFound
}
