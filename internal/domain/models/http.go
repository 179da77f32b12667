package models

import "time"

// SnapshotRequest is the POST /api/snapshot body. Equity carries no
// validation tag: a zero or inconsistent figure is classified by ingestion,
// not rejected at the adapter.
type SnapshotRequest struct {
	Timestamp time.Time     `json:"timestamp"`
	Equity    float64       `json:"equity"`
	Cash      float64       `json:"cash"`
	Positions []RawPosition `json:"positions" validate:"dive"`
	Orders    []RawOrder    `json:"orders"`
	Source    string        `json:"source" default:"api"`
}

// ToRaw converts the request into the ingestion input.
func (r SnapshotRequest) ToRaw() RawSnapshot {
	return RawSnapshot{
		Timestamp: r.Timestamp,
		Equity:    r.Equity,
		Cash:      r.Cash,
		Positions: r.Positions,
		Orders:    r.Orders,
		Source:    r.Source,
	}
}

// TicksRequest is the POST /api/ticks body.
type TicksRequest struct {
	Ticks []RawTick `json:"ticks" validate:"required,min=1"`
}

// ImportRequest is the POST /api/import body.
type ImportRequest struct {
	Headers []string   `json:"headers" validate:"required,min=1"`
	Rows    [][]string `json:"rows" validate:"required,min=1"`
}

// TradeCheckRequest is the POST /api/trade/check body. Quantity and price
// validation is left to the policy engine so violations come back as a
// decision rather than a 400.
type TradeCheckRequest struct {
	Symbol      string  `json:"symbol" validate:"required"`
	Side        string  `json:"side" validate:"required,oneof=buy sell"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	OrderType   string  `json:"orderType" default:"market" validate:"oneof=market limit"`
	RequestedBy string  `json:"requestedBy"`
}

// ToTradeRequest converts the request into the engine input.
func (r TradeCheckRequest) ToTradeRequest() TradeRequest {
	return TradeRequest{
		Symbol:      r.Symbol,
		Side:        TradeSide(r.Side),
		Quantity:    r.Quantity,
		Price:       r.Price,
		OrderType:   OrderType(r.OrderType),
		RequestedBy: r.RequestedBy,
	}
}

// ArchiveSearchRequest is the GET /api/archives query.
type ArchiveSearchRequest struct {
	Category string `query:"category"`
	From     string `query:"from"`
	To       string `query:"to"`
}
