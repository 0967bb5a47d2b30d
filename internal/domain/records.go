package domain

import "time"

// Product is a catalog entry. Age-restriction fields drive the verification
// plugin when an item.added event lacks them inline.
type Product struct {
	ProductID     string    `json:"productId"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Category      string    `json:"category,omitempty"`
	AgeRestricted bool      `json:"ageRestricted"`
	MinimumAge    int       `json:"minimumAge,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// Basket is a keyed record for an open or completed sale.
type Basket struct {
	BasketID   string       `json:"basketId"`
	EmployeeID string       `json:"employeeId"`
	TerminalID string       `json:"terminalId"`
	CustomerID string       `json:"customerId,omitempty"`
	Status     string       `json:"status"`
	Items      []BasketItem `json:"items,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
}

// Basket status values.
const (
	BasketOpen      = "OPEN"
	BasketPaid      = "PAID"
	BasketCancelled = "CANCELLED"
)

// BasketItem is a committed line item.
type BasketItem struct {
	ItemID      string    `json:"itemId"`
	BasketID    string    `json:"basketId"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	AddedAt     time.Time `json:"addedAt"`
}

// Customer is a locally cached record fetched from the external system.
type Customer struct {
	CustomerID string    `json:"customerId"`
	Identifier string    `json:"identifier"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CustomerLookupLog records one external lookup attempt for audit.
type CustomerLookupLog struct {
	BasketID   string    `json:"basketId"`
	Identifier string    `json:"identifier"`
	Status     string    `json:"status"` // SUCCESS or FAILED
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// TimeEntry is one clock-in/clock-out pair for an employee on a terminal.
type TimeEntry struct {
	EntryID    string    `json:"entryId"`
	EmployeeID string    `json:"employeeId"`
	TerminalID string    `json:"terminalId"`
	ClockIn    time.Time `json:"clockIn"`
	ClockOut   time.Time `json:"clockOut,omitempty"`
	TotalHours float64   `json:"totalHours,omitempty"`
}

// RecommendationRule pairs a source product with a suggested companion.
type RecommendationRule struct {
	SourceProductID      string  `json:"sourceProductId"`
	RecommendedProductID string  `json:"recommendedProductId"`
	RecommendedName      string  `json:"recommendedName"`
	RecommendedPrice     float64 `json:"recommendedPrice"`
	Priority             int     `json:"priority"`
	Active               bool    `json:"active"`
}

// Recommendation is a pending suggestion surfaced for a basket.
type Recommendation struct {
	ID                   string    `json:"id"`
	BasketID             string    `json:"basketId"`
	SourceProductID      string    `json:"sourceProductId"`
	RecommendedProductID string    `json:"recommendedProductId"`
	RecommendedName      string    `json:"recommendedName"`
	RecommendedPrice     float64   `json:"recommendedPrice"`
	Reason               string    `json:"reason"`
	Status               string    `json:"status"` // PENDING, ACCEPTED, DISMISSED
	CreatedAt            time.Time `json:"createdAt"`
}

// PluginConfig drives whether the router considers a plugin for dispatch.
// Read fresh on every dispatch cycle; toggles take effect without restart.
type PluginConfig struct {
	Name        string         `json:"name"`
	Enabled     bool           `json:"enabled"`
	Config      map[string]any `json:"config,omitempty"`
	Description string         `json:"description,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}
