// Package usecase composes the pipeline components behind the HTTP surface.
package usecase

import (
	"context"
	"fmt"
	"time"

	"PortPulse/internal/aggregate"
	"PortPulse/internal/domain/models"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/internal/risk"
	"PortPulse/pkg/logger"
)

// TradeGuard evaluates trade requests against the current portfolio state.
// Decisions are returned to the caller and never persisted.
type TradeGuard struct {
	log     *logger.Logger
	bid     *aggregate.BID
	engine  *risk.Engine
	metrics domrepo.Metrics
}

// NewTradeGuard creates the trade check usecase.
func NewTradeGuard(log *logger.Logger, bid *aggregate.BID, engine *risk.Engine, metrics domrepo.Metrics) *TradeGuard {
	return &TradeGuard{log: log, bid: bid, engine: engine, metrics: metrics}
}

// Check evaluates one trade request. Returns aggregate.ErrNoState before the
// first snapshot has been aggregated.
func (g *TradeGuard) Check(ctx context.Context, req models.TradeRequest) (models.RiskDecision, error) {
	view, err := g.bid.View()
	if err != nil {
		return models.RiskDecision{}, fmt.Errorf("trade check: %w", err)
	}

	start := time.Now()
	decision := g.engine.Evaluate(req, view)
	g.metrics.RecordDecision(string(decision.Action))
	g.metrics.RecordLatency("trade_check", time.Since(start).Seconds())

	if !decision.Allowed {
		g.log.Warn("trade blocked",
			logger.String("symbol", req.Symbol),
			logger.String("side", string(req.Side)),
			logger.Float64("quantity", req.Quantity),
			logger.String("risk_level", string(decision.RiskLevel)))
	}
	return decision, nil
}
