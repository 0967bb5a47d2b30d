// Package domain defines the core interfaces and types for Magpie.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence: the product
// catalog, basket/customer store, rule and plugin configuration, and the
// append-only alert/violation records.
type Repository interface {
	// Product catalog
	SaveProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// Basket store
	SaveBasket(ctx context.Context, b *Basket) error
	GetBasket(ctx context.Context, basketID string) (*Basket, error)
	AppendBasketItem(ctx context.Context, basketID string, item *BasketItem) (*BasketItem, error)
	SetBasketCustomer(ctx context.Context, basketID, customerID string) error

	// Customer store
	SaveCustomer(ctx context.Context, c *Customer) error
	GetCustomerByIdentifier(ctx context.Context, identifier string) (*Customer, error)
	LogCustomerLookup(ctx context.Context, l *CustomerLookupLog) error

	// Fraud rule configuration
	SaveFraudRule(ctx context.Context, r *FraudRule) error
	GetFraudRule(ctx context.Context, ruleID string) (*FraudRule, error)
	ListFraudRules(ctx context.Context) ([]*FraudRule, error)

	// Fraud alerts
	SaveFraudAlert(ctx context.Context, a *FraudAlert) error
	ListFraudAlerts(ctx context.Context, limit int) ([]*FraudAlert, error)
	AcknowledgeFraudAlert(ctx context.Context, alertID string) error

	// Age verification violations (append-only)
	SaveAgeViolation(ctx context.Context, v *AgeViolation) error
	ListAgeViolations(ctx context.Context, basketID string) ([]*AgeViolation, error)

	// Plugin configuration
	SavePluginConfig(ctx context.Context, cfg *PluginConfig) error
	GetPluginConfig(ctx context.Context, name string) (*PluginConfig, error)
	ListPluginConfigs(ctx context.Context) ([]*PluginConfig, error)

	// Time tracking
	CreateTimeEntry(ctx context.Context, e *TimeEntry) error
	CloseTimeEntry(ctx context.Context, employeeID, terminalID string, clockOut time.Time) (*TimeEntry, error)
	ListTimeEntries(ctx context.Context, employeeID string) ([]*TimeEntry, error)

	// Recommendations
	SaveRecommendationRule(ctx context.Context, r *RecommendationRule) error
	ListRecommendationRules(ctx context.Context, sourceProductID string) ([]*RecommendationRule, error)
	SaveRecommendation(ctx context.Context, rec *Recommendation) error
	ListRecommendations(ctx context.Context, basketID string) ([]*Recommendation, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
