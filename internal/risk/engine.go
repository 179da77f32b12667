// Package risk evaluates proposed trades against configurable risk controls.
// Evaluation is pure: it reads a portfolio view snapshot and never mutates
// shared state, so it is safe to call concurrently.
package risk

import (
	"fmt"
	"strings"

	"PortPulse/internal/domain/models"
)

// Config holds the control toggles and limits. Every check can be switched
// off independently. Limits ship with fixed policy defaults but are
// deployment-configurable.
type Config struct {
	BlacklistEnforced bool
	Blacklist         []string

	MinimumThresholds bool
	MinPrice          float64
	MinQuantity       float64

	ConcentrationLimitEnabled bool
	ConcentrationCap          float64 // fraction of total value, default 0.10

	SoftPullEnabled bool
	HardPullEnabled bool

	DailyDrawdownGuard bool
	MaxDailyLoss       float64 // fraction of day-start equity, default 0.05
}

// DefaultConfig returns the shipped policy defaults with every control
// enabled in hard-pull mode.
func DefaultConfig() Config {
	return Config{
		BlacklistEnforced:         true,
		MinimumThresholds:         true,
		MinPrice:                  1.0,
		MinQuantity:               1.0,
		ConcentrationLimitEnabled: true,
		ConcentrationCap:          0.10,
		SoftPullEnabled:           true,
		HardPullEnabled:           true,
		DailyDrawdownGuard:        true,
		MaxDailyLoss:              0.05,
	}
}

// Engine is the risk policy engine. It holds no mutable state.
type Engine struct {
	cfg  Config
	deny map[string]struct{}
}

// NewEngine creates an engine from a control configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.ConcentrationCap <= 0 {
		cfg.ConcentrationCap = 0.10
	}
	if cfg.MaxDailyLoss <= 0 {
		cfg.MaxDailyLoss = 0.05
	}
	deny := make(map[string]struct{}, len(cfg.Blacklist))
	for _, s := range cfg.Blacklist {
		deny[strings.ToUpper(s)] = struct{}{}
	}
	return &Engine{cfg: cfg, deny: deny}
}

// Evaluate checks a trade request against the current portfolio view and
// returns a decision. It never fails for a type-valid request: every failure
// mode resolves to a RiskDecision.
func (e *Engine) Evaluate(req models.TradeRequest, view models.PortfolioView) models.RiskDecision {
	var (
		violations []models.Violation
		warnings   []string
		mods       map[string]float64
		level      = models.SeverityLow
	)

	addViolation := func(rule string, sev models.Severity, msg string) {
		violations = append(violations, models.Violation{Rule: rule, Severity: sev, Message: msg})
		level = models.MaxSeverity(level, sev)
	}

	if e.cfg.BlacklistEnforced {
		if _, denied := e.deny[strings.ToUpper(req.Symbol)]; denied {
			addViolation("blacklist", models.SeverityCritical,
				fmt.Sprintf("symbol %s is blacklisted", strings.ToUpper(req.Symbol)))
		}
	}

	if e.cfg.MinimumThresholds {
		if req.Price < e.cfg.MinPrice {
			addViolation("min_price", models.SeverityMedium,
				fmt.Sprintf("price %.4f below minimum %.4f", req.Price, e.cfg.MinPrice))
		}
		if req.Quantity < e.cfg.MinQuantity {
			addViolation("min_quantity", models.SeverityMedium,
				fmt.Sprintf("quantity %.4f below minimum %.4f", req.Quantity, e.cfg.MinQuantity))
		}
	}

	if e.cfg.ConcentrationLimitEnabled {
		switch {
		case view.TotalEquity <= 0:
			addViolation("concentration", models.SeverityHigh,
				"portfolio value unavailable, cannot size position")
		case req.Price > 0 && req.Quantity > 0:
			notional := req.Price * req.Quantity
			if ratio := notional / view.TotalEquity; ratio > e.cfg.ConcentrationCap {
				if e.cfg.SoftPullEnabled {
					// Soft pull shrinks the request to the cap instead of blocking.
					maxQty := e.cfg.ConcentrationCap * view.TotalEquity / req.Price
					if mods == nil {
						mods = make(map[string]float64, 1)
					}
					mods["quantity"] = maxQty
					warnings = append(warnings, fmt.Sprintf(
						"order reduced from %.4f to %.4f to respect the %.0f%% concentration cap",
						req.Quantity, maxQty, e.cfg.ConcentrationCap*100))
					level = models.MaxSeverity(level, models.SeverityMedium)
				} else {
					addViolation("concentration", models.SeverityHigh, fmt.Sprintf(
						"order is %.1f%% of portfolio value, cap is %.1f%%",
						ratio*100, e.cfg.ConcentrationCap*100))
				}
			}
		}
	}

	// The drawdown guard fires regardless of other settings.
	if e.cfg.DailyDrawdownGuard && view.DayStartEquity > 0 {
		loss := (view.DayStartEquity - view.TotalEquity) / view.DayStartEquity
		if loss > e.cfg.MaxDailyLoss {
			addViolation("daily_drawdown", models.SeverityCritical, fmt.Sprintf(
				"daily loss %.2f%% exceeds the %.2f%% guard",
				loss*100, e.cfg.MaxDailyLoss*100))
		}
	}

	return e.synthesize(violations, warnings, mods, level)
}

func (e *Engine) synthesize(violations []models.Violation, warnings []string, mods map[string]float64, level models.Severity) models.RiskDecision {
	d := models.RiskDecision{
		Allowed:       true,
		Action:        models.ActionAllow,
		Modifications: mods,
		Warnings:      warnings,
		Violations:    violations,
		RiskLevel:     level,
	}

	switch {
	case len(violations) > 0 && e.cfg.HardPullEnabled:
		d.Allowed = false
		d.Action = models.ActionBlock
	case len(mods) > 0:
		d.Action = models.ActionModify
	case len(violations) > 0:
		// Enforcement disabled: violations are surfaced as warnings, never
		// silently dropped.
		for _, v := range violations {
			d.Warnings = append(d.Warnings, v.Message)
		}
	}
	return d
}
