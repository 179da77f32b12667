package models

import "time"

// RawTick is a market data tick as delivered by a feed adapter.
type RawTick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanedTick is a validated tick with the symbol normalized to uppercase
// and the spread derived as ask minus bid.
type CleanedTick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume    float64   `json:"volume"`
	Spread    float64   `json:"spread"`
	Timestamp time.Time `json:"timestamp"`
}

// ImportResult reports the outcome of a tabular import.
type ImportResult struct {
	Category string `json:"category"`
	Accepted int    `json:"accepted"`
}
