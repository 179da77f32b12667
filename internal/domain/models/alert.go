package models

import "time"

// AlertType categorizes alerts by origin.
type AlertType string

const (
	AlertRisk        AlertType = "risk"
	AlertOpportunity AlertType = "opportunity"
	AlertTechnical   AlertType = "technical"
	AlertSystem      AlertType = "system"
)

// Severity orders alerts and policy violations by impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Alert is an entry in the bounded alert log. Acknowledgment is the only
// permitted mutation after creation.
type Alert struct {
	ID           string     `json:"id"`
	Type         AlertType  `json:"type"`
	Severity     Severity   `json:"severity"`
	Message      string     `json:"message"`
	Symbol       string     `json:"symbol,omitempty"`
	Acknowledged bool       `json:"acknowledged"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}
