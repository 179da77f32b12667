package aggregate

import (
	"fmt"
	"reflect"
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

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestBID(t *testing.T, opts ...Option) (*BID, *bus.Hub) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	h := bus.New(l)
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(DefaultConfig(), h, l, noopMetrics{}, opts...), h
}

func snapshot(id string, equity, cash float64, positions ...models.ValidatedPosition) models.ValidatedSnapshot {
	return models.ValidatedSnapshot{
		ID:         id,
		Timestamp:  testNow.Add(-time.Minute),
		Equity:     equity,
		Cash:       cash,
		Positions:  positions,
		Validated:  true,
		ReceivedAt: testNow,
	}
}

func position(symbol string, qty, avg, current float64) models.ValidatedPosition {
	return models.ValidatedPosition{
		RawPosition: models.RawPosition{
			Symbol: symbol, Quantity: qty, AvgPrice: avg, CurrentPrice: current, Side: models.SideLong,
		},
		MarketValue:   current * qty,
		UnrealizedPnL: (current - avg) * qty,
	}
}

func TestAggregateWorkedExample(t *testing.T) {
	b, _ := newTestBID(t)

	b.OnSnapshot(snapshot("s1", 10000, 2000, position("AAPL", 50, 150, 160)))

	view, err := b.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	p := view.Positions[0]
	if p.UnrealizedPnL != 500 {
		t.Fatalf("pnl = %v, want 500", p.UnrealizedPnL)
	}
	if p.Allocation != 80 {
		t.Fatalf("allocation = %v, want 80", p.Allocation)
	}
	if view.DataQuality != models.QualityExcellent {
		t.Fatalf("quality = %v, want excellent", view.DataQuality)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	b, _ := newTestBID(t)
	s := snapshot("s1", 10000, 2000, position("AAPL", 50, 150, 160))

	b.OnSnapshot(s)
	view1, _ := b.View()
	metrics1, _ := b.RiskMetrics()
	alerts1 := b.Alerts()

	b.OnSnapshot(s)
	view2, _ := b.View()
	metrics2, _ := b.RiskMetrics()
	alerts2 := b.Alerts()

	if !reflect.DeepEqual(view1, view2) {
		t.Fatalf("views differ:\n%+v\n%+v", view1, view2)
	}
	if !reflect.DeepEqual(metrics1, metrics2) {
		t.Fatalf("metrics differ:\n%+v\n%+v", metrics1, metrics2)
	}
	if len(alerts1) != len(alerts2) {
		t.Fatalf("replay raised duplicate alerts: %d vs %d", len(alerts1), len(alerts2))
	}
}

func TestConcentrationAlert(t *testing.T) {
	b, h := newTestBID(t)

	var raised []models.Alert
	bus.Subscribe(h, events.AlertRaised, func(a models.Alert) { raised = append(raised, a) })

	// allocations 70% and 30%: concentration 0.49 + 0.09 = 0.58 > 0.5
	b.OnSnapshot(snapshot("s1", 10000, 0,
		position("NVDA", 70, 100, 100),
		position("AAPL", 30, 100, 100),
	))

	metrics, _ := b.RiskMetrics()
	if metrics.ConcentrationRisk < 0.57 || metrics.ConcentrationRisk > 0.59 {
		t.Fatalf("concentration = %v, want ~0.58", metrics.ConcentrationRisk)
	}
	if metrics.LargestPosition != "NVDA" {
		t.Fatalf("largest position = %q, want NVDA", metrics.LargestPosition)
	}

	if len(raised) != 1 {
		t.Fatalf("alerts raised = %d, want 1", len(raised))
	}
	a := raised[0]
	if a.Type != models.AlertRisk || a.Severity != models.SeverityHigh || a.Symbol != "NVDA" {
		t.Fatalf("unexpected alert: %+v", a)
	}
}

func TestPnLAlerts(t *testing.T) {
	b, _ := newTestBID(t)

	// -15% loss and +25% gain; enough cash to stay under the concentration threshold
	b.OnSnapshot(snapshot("s1", 5000, 2900,
		position("MEH", 10, 100, 85),
		position("YAY", 10, 100, 125),
	))

	alerts := b.Alerts()
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	var sawLoss, sawGain bool
	for _, a := range alerts {
		switch a.Symbol {
		case "MEH":
			sawLoss = a.Type == models.AlertRisk && a.Severity == models.SeverityMedium
		case "YAY":
			sawGain = a.Type == models.AlertOpportunity && a.Severity == models.SeverityLow
		}
	}
	if !sawLoss || !sawGain {
		t.Fatalf("missing expected alerts: %+v", alerts)
	}
}

func TestDataQualityClassification(t *testing.T) {
	b, _ := newTestBID(t)

	stale := snapshot("s1", 1000, 1000)
	stale.Timestamp = testNow.Add(-20 * time.Minute)
	b.OnSnapshot(stale)
	if v, _ := b.View(); v.DataQuality != models.QualityStale {
		t.Fatalf("quality = %v, want stale", v.DataQuality)
	}

	good := snapshot("s2", 1000, 1000)
	good.Timestamp = testNow.Add(-10 * time.Minute)
	b.OnSnapshot(good)
	if v, _ := b.View(); v.DataQuality != models.QualityGood {
		t.Fatalf("quality = %v, want good", v.DataQuality)
	}

	poor := snapshot("s3", 1000, 900)
	poor.Validated = false
	poor.ValidationErrors = []string{"equity does not reconcile"}
	b.OnSnapshot(poor)
	if v, _ := b.View(); v.DataQuality != models.QualityPoor {
		t.Fatalf("quality = %v, want poor", v.DataQuality)
	}
}

func TestAlertLogIsBounded(t *testing.T) {
	b, _ := newTestBID(t, WithAlertCapacity(3))

	// each snapshot raises exactly one loss alert (allocation stays small)
	for _, sym := range []string{"A", "B", "C", "D"} {
		b.OnSnapshot(snapshot(
			"s"+sym, 5850, 5000,
			position(sym, 10, 100, 85),
		))
	}

	alerts := b.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("alert log = %d, want 3", len(alerts))
	}
	// newest first; the oldest (A) evicted
	if alerts[0].Symbol != "D" || alerts[2].Symbol != "B" {
		t.Fatalf("unexpected alert order: %+v", alerts)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	b, _ := newTestBID(t)
	b.OnSnapshot(snapshot("s1", 5850, 5000, position("X", 10, 100, 85)))

	alerts := b.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if err := b.Acknowledge(alerts[0].ID); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if got := b.Alerts(); !got[0].Acknowledged {
		t.Fatalf("alert not acknowledged")
	}
	if err := b.Acknowledge("nope"); err != ErrAlertNotFound {
		t.Fatalf("want ErrAlertNotFound, got %v", err)
	}
}

func TestViewBeforeFirstSnapshot(t *testing.T) {
	b, _ := newTestBID(t)
	if _, err := b.View(); err != ErrNoState {
		t.Fatalf("want ErrNoState, got %v", err)
	}
	if _, err := b.RiskMetrics(); err != ErrNoState {
		t.Fatalf("want ErrNoState, got %v", err)
	}
}

func TestEquityHistoryIsBounded(t *testing.T) {
	b, _ := newTestBID(t, WithEquityWindow(50))

	for i := 0; i < 500; i++ {
		b.OnSnapshot(snapshot(fmt.Sprintf("s%d", i), 10000+float64(i), 2000))
	}

	b.mu.RLock()
	got := len(b.equityHist)
	newest := b.equityHist[got-1]
	oldest := b.equityHist[0]
	b.mu.RUnlock()

	if got != 50 {
		t.Fatalf("equity history = %d entries, want 50", got)
	}
	if newest != 10499 || oldest != 10450 {
		t.Fatalf("window = [%v..%v], want the most recent 50 points", oldest, newest)
	}
}
