package models

// TradeSide is the direction of a trade request.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// OrderType is the execution style of a trade request.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// TradeRequest is a transient input to the risk policy engine; it is never
// persisted.
type TradeRequest struct {
	Symbol      string    `json:"symbol"`
	Side        TradeSide `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	OrderType   OrderType `json:"orderType"`
	RequestedBy string    `json:"requestedBy,omitempty"`
}

// DecisionAction is what the caller should do with a trade request.
type DecisionAction string

const (
	ActionAllow  DecisionAction = "allow"
	ActionModify DecisionAction = "modify"
	ActionBlock  DecisionAction = "block"
)

// Violation is a single failed risk control check.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RiskDecision is the single output of a policy evaluation. Callers act on it
// immediately; it is not stored.
type RiskDecision struct {
	Allowed       bool               `json:"allowed"`
	Action        DecisionAction     `json:"action"`
	Modifications map[string]float64 `json:"modifications,omitempty"`
	Warnings      []string           `json:"warnings,omitempty"`
	Violations    []Violation        `json:"violations,omitempty"`
	RiskLevel     Severity           `json:"riskLevel"`
}
