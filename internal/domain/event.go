package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies a business event. The set of kinds is closed: producers
// and plugins agree on these tags, and the router dispatches on them.
type Kind string

// Canonical event kinds. Dot-case throughout; the legacy SCREAMING_SNAKE
// names some producers used are not accepted on the wire.
const (
	KindEmployeeLogin     Kind = "employee.login"
	KindEmployeeLogout    Kind = "employee.logout"
	KindSessionTerminated Kind = "session.terminated"

	KindBasketStarted      Kind = "basket.started"
	KindItemAdded          Kind = "item.added"
	KindItemRemoved        Kind = "item.removed"
	KindCustomerIdentified Kind = "customer.identified"

	KindPaymentInitiated Kind = "payment.initiated"
	KindPaymentCompleted Kind = "payment.completed"

	KindAgeVerified              Kind = "age.verified"
	KindAgeVerificationCancelled Kind = "age.verification.cancelled"
	KindAgeVerificationRequired  Kind = "age.verification.required"
	KindAgeVerificationCompleted Kind = "age.verification.completed"
	KindAgeVerificationFailed    Kind = "age.verification.failed"
	KindVerifiedItemAdded        Kind = "verified.item.added"

	KindFraudAlert              Kind = "fraud.alert"
	KindRecommendationSuggested Kind = "recommendation.suggested"
	KindCustomerDataFetched     Kind = "customer.data.fetched"
)

// Event is an immutable envelope describing a business occurrence.
// Attributes carry basket_id, employee_id and terminal_id where applicable;
// consumers must tolerate missing optional attributes.
type Event struct {
	Kind       Kind           `json:"kind"`
	Attributes map[string]any `json:"attributes,omitempty"`
	EmittedAt  time.Time      `json:"emittedAt"`
}

// Well-known attribute keys.
const (
	AttrBasketID   = "basket_id"
	AttrEmployeeID = "employee_id"
	AttrTerminalID = "terminal_id"
	AttrProductID  = "product_id"
	AttrAmount     = "amount"
	AttrQuantity   = "quantity"
	AttrPrice      = "price"
)

// NewEvent constructs an event with the current timestamp.
func NewEvent(kind Kind, attrs map[string]any) *Event {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Event{
		Kind:       kind,
		Attributes: attrs,
		EmittedAt:  time.Now().UTC(),
	}
}

// Validate checks the envelope invariants.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.Kind == "" {
		return fmt.Errorf("event kind is empty")
	}
	return nil
}

// String returns the string attribute for key, or "" when absent.
// Numeric JSON values are not coerced; producers send join keys as strings.
func (e *Event) String(key string) string {
	if e.Attributes == nil {
		return ""
	}
	if v, ok := e.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the numeric attribute for key, or 0 when absent.
// JSON decoding yields float64 for all numbers; int is accepted for
// events constructed in-process.
func (e *Event) Float(key string) float64 {
	if e.Attributes == nil {
		return 0
	}
	switch v := e.Attributes[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns the integer attribute for key, or 0 when absent.
func (e *Event) Int(key string) int {
	return int(e.Float(key))
}

// Bool returns the boolean attribute for key, or false when absent.
func (e *Event) Bool(key string) bool {
	if e.Attributes == nil {
		return false
	}
	if v, ok := e.Attributes[key].(bool); ok {
		return v
	}
	return false
}

// BasketID returns the basket join key, or "".
func (e *Event) BasketID() string { return e.String(AttrBasketID) }

// EmployeeID returns the employee join key, or "".
func (e *Event) EmployeeID() string { return e.String(AttrEmployeeID) }

// TerminalID returns the terminal join key, or "".
func (e *Event) TerminalID() string { return e.String(AttrTerminalID) }

// Encode serializes the event for bus transport.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an event from its bus payload.
func DecodeEvent(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
