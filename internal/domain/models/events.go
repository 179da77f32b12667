package models

// StateUpdate is the payload of a state.updated event: the rebuilt portfolio
// view together with the risk metrics derived from it.
type StateUpdate struct {
	View    PortfolioView `json:"view"`
	Metrics RiskMetrics   `json:"metrics"`
}

// LifecycleEvent is the payload of storage.archived and storage.deleted.
type LifecycleEvent struct {
	Category  string `json:"category"`
	ItemCount int    `json:"itemCount"`
}
