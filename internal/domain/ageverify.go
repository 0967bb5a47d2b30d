package domain

import "time"

// RestrictedItem is a catalog item requiring age verification before sale.
// Deduplicated by ProductID within a basket.
type RestrictedItem struct {
	ProductID  string  `json:"productId"`
	Name       string  `json:"name"`
	MinimumAge int     `json:"minimumAge"`
	Category   string  `json:"category,omitempty"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

// VerificationState is the externally visible age-verification snapshot for
// a basket. Invariant: RequiresVerification == (len(RestrictedItems) > 0).
type VerificationState struct {
	BasketID              string           `json:"basketId"`
	RequiresVerification  bool             `json:"requiresVerification"`
	VerificationCompleted bool             `json:"verificationCompleted"`
	VerifiedAt            time.Time        `json:"verifiedAt,omitempty"`
	VerifierEmployeeID    string           `json:"verifierEmployeeId,omitempty"`
	CustomerAge           int              `json:"customerAge,omitempty"`
	VerificationMethod    string           `json:"verificationMethod,omitempty"`
	RestrictedItems       []RestrictedItem `json:"restrictedItems"`
}

// Age verification failure reasons.
const (
	ReasonInsufficientAge       = "INSUFFICIENT_AGE"
	ReasonVerificationCancelled = "VERIFICATION_CANCELLED"
	ReasonUnverifiedItems       = "UNVERIFIED_RESTRICTED_ITEMS"
)

// AgeViolation is an append-only audit record created when payment is
// attempted against an unmet verification requirement.
type AgeViolation struct {
	ViolationID   string         `json:"violationId"`
	BasketID      string         `json:"basketId"`
	EmployeeID    string         `json:"employeeId,omitempty"`
	TerminalID    string         `json:"terminalId,omitempty"`
	ViolationType string         `json:"violationType"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
