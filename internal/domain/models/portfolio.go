package models

import "time"

// PositionSide indicates the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// RawPosition is a position exactly as delivered by a broker adapter.
type RawPosition struct {
	Symbol       string       `json:"symbol"`
	Quantity     float64      `json:"quantity"`
	AvgPrice     float64      `json:"avgPrice"`
	CurrentPrice float64      `json:"currentPrice"`
	Side         PositionSide `json:"side"`
}

// RawOrder is an open order as delivered by a broker adapter.
type RawOrder struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Type     string  `json:"type"`
	Status   string  `json:"status"`
}

// RawSnapshot is a point-in-time account capture from an external feed.
// It is immutable once received and not retained beyond validation.
type RawSnapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Equity    float64       `json:"equity"`
	Cash      float64       `json:"cash"`
	Positions []RawPosition `json:"positions"`
	Orders    []RawOrder    `json:"orders,omitempty"`
	Source    string        `json:"source,omitempty"`
}

// ValidatedPosition is a raw position enriched during validation.
type ValidatedPosition struct {
	RawPosition
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
}

// ValidatedSnapshot is the validated form of a RawSnapshot. Validation
// problems are recorded on the record instead of discarding it.
type ValidatedSnapshot struct {
	ID               string              `json:"id"`
	Timestamp        time.Time           `json:"timestamp"`
	Equity           float64             `json:"equity"`
	Cash             float64             `json:"cash"`
	Positions        []ValidatedPosition `json:"positions"`
	Orders           []RawOrder          `json:"orders,omitempty"`
	Validated        bool                `json:"validated"`
	ValidationErrors []string            `json:"validationErrors,omitempty"`
	ReceivedAt       time.Time           `json:"receivedAt"`
}

// DataQuality classifies how much consumers should trust aggregated state.
type DataQuality string

const (
	QualityExcellent DataQuality = "excellent"
	QualityGood      DataQuality = "good"
	QualityPoor      DataQuality = "poor"
	QualityStale     DataQuality = "stale"
)

// Position is a portfolio position enriched with derived fields.
type Position struct {
	Symbol           string       `json:"symbol"`
	Quantity         float64      `json:"quantity"`
	AvgPrice         float64      `json:"avgPrice"`
	CurrentPrice     float64      `json:"currentPrice"`
	Side             PositionSide `json:"side"`
	MarketValue      float64      `json:"marketValue"`
	Allocation       float64      `json:"allocation"` // percent of total value
	UnrealizedPnL    float64      `json:"unrealizedPnL"`
	UnrealizedPnLPct float64      `json:"unrealizedPnLPct"`
}

// PortfolioView is the single current aggregated portfolio state. It is
// rebuilt wholesale on every validated snapshot, never patched field by field.
type PortfolioView struct {
	SnapshotID     string      `json:"snapshotId"`
	TotalEquity    float64     `json:"totalEquity"`
	Cash           float64     `json:"cash"`
	Positions      []Position  `json:"positions"`
	DayStartEquity float64     `json:"dayStartEquity"`
	DailyPnL       float64     `json:"dailyPnL"`
	DataQuality    DataQuality `json:"dataQuality"`
	LastUpdated    time.Time   `json:"lastUpdated"`
}

// RiskMetrics is a value object recomputed atomically alongside each
// PortfolioView update; it is fully replaced, never partially mutated.
type RiskMetrics struct {
	Volatility        float64   `json:"volatility"`
	SharpeRatio       float64   `json:"sharpeRatio"`
	MaxDrawdown       float64   `json:"maxDrawdown"`
	Beta              float64   `json:"beta"`
	ConcentrationRisk float64   `json:"concentrationRisk"`
	LargestPosition   string    `json:"largestPosition"`
	LargestPositionPct float64  `json:"largestPositionPct"`
	ComputedAt        time.Time `json:"computedAt"`
}
