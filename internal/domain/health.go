package domain

import "time"

// HealthStatus is the registry reachability verdict from one probe.
type HealthStatus string

const (
	HealthUp            HealthStatus = "up"
	HealthDown          HealthStatus = "down"
	HealthNotConfigured HealthStatus = "not_configured"
)

// HealthRecord is one probe snapshot. Append-only.
type HealthRecord struct {
	Service      string
	Status       HealthStatus
	Message      string
	ResponseTime time.Duration
	ErrorCode    string
	Timestamp    time.Time
}

// AlertType names the conditions the monitor raises.
type AlertType string

const (
	AlertAPIDown        AlertType = "api_down"
	AlertHighErrorRate  AlertType = "high_error_rate"
	AlertBudgetWarning  AlertType = "budget_warning"
	AlertBudgetExceeded AlertType = "budget_exceeded"
)

// AlertSeverity mirrors the monitor's escalation levels.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a persisted monitor notice. Acknowledging records who and when;
// nothing else ever mutates.
type Alert struct {
	ID             string
	Type           AlertType
	Service        string
	Severity       AlertSeverity
	Message        string
	Details        map[string]any
	Acknowledged   bool
	AcknowledgedBy string
	AcknowledgedAt time.Time
	CreatedAt      time.Time
}

// UsageRecord accumulates registry call counts and spend for one period
// (a day or a month) per provider.
type UsageRecord struct {
	Provider     string
	Period       string // "daily" or "monthly"
	Key          string // YYYY-MM-DD or YYYY-MM
	TotalCalls   int
	SuccessCalls int
	FailedCalls  int
	Cost         float64
	LastCallAt   time.Time
	UpdatedAt    time.Time
}
