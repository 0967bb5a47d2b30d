package domain

import "time"

// Severity levels for fraud rules and alerts.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Built-in fraud rule IDs. Each has hardwired evaluation semantics in the
// fraud engine; rules with other IDs must carry a CEL expression.
const (
	RuleMultipleTerminals = "multiple_terminals"
	RuleRapidItems        = "rapid_items"
	RuleHighValuePayment  = "high_value_payment"
	RuleAnonymousPayment  = "anonymous_payment"
	RuleRapidCheckout     = "rapid_checkout"
)

// FraudRule is a declarative threshold + time-window + severity check.
// Read-only during evaluation; mutated only through administrative update.
type FraudRule struct {
	RuleID      string `json:"ruleId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`

	// TimeWindowSecs bounds the lookback for window-based checks.
	TimeWindowSecs int `json:"timeWindowSecs"`

	// Threshold is the trigger value; its unit depends on the rule
	// (terminal count, item count, payment amount, seconds).
	Threshold float64 `json:"threshold"`

	// Expression is an optional CEL expression over the derived state
	// snapshot for custom rules. Empty for the built-in five.
	Expression string `json:"expression,omitempty"`

	// EventKinds lists the kinds a custom expression rule is evaluated
	// on. Ignored for built-in rules, which have a static interest map.
	EventKinds []Kind `json:"eventKinds,omitempty"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FraudAlert records a single detected violation. Immutable once created
// except for the acknowledged toggle by an operator.
type FraudAlert struct {
	AlertID      string         `json:"alertId"`
	RuleID       string         `json:"ruleId"`
	EmployeeID   string         `json:"employeeId"`
	TerminalID   string         `json:"terminalId,omitempty"`
	BasketID     string         `json:"basketId,omitempty"`
	Severity     string         `json:"severity"`
	Details      map[string]any `json:"details"`
	Acknowledged bool           `json:"acknowledged"`
	Timestamp    time.Time      `json:"timestamp"`
}
