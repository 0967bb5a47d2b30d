// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProduct stores or updates a catalog product.
func (r *SQLRepository) SaveProduct(ctx context.Context, p *domain.Product) error {
	if p.ProductID == "" {
		return fmt.Errorf("%w: productID is required", ErrInvalidInput)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO products (product_id, name, price, category, age_restricted, minimum_age, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			category = excluded.category,
			age_restricted = excluded.age_restricted,
			minimum_age = excluded.minimum_age
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ProductID, p.Name, p.Price, p.Category,
		boolToInt(p.AgeRestricted), p.MinimumAge, createdAt,
	)
	return err
}

// GetProduct retrieves a catalog product by ID.
func (r *SQLRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `
		SELECT product_id, name, price, category, age_restricted, minimum_age, created_at
		FROM products
		WHERE product_id = ?
	`

	var p domain.Product
	var ageRestricted int

	err := r.db.QueryRowContext(ctx, r.rebind(query), productID).Scan(
		&p.ProductID, &p.Name, &p.Price, &p.Category,
		&ageRestricted, &p.MinimumAge, &p.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.AgeRestricted = ageRestricted == 1
	return &p, nil
}

// SaveBasket stores or updates a basket header. Items are appended
// separately through AppendBasketItem.
func (r *SQLRepository) SaveBasket(ctx context.Context, b *domain.Basket) error {
	if b.BasketID == "" {
		return fmt.Errorf("%w: basketID is required", ErrInvalidInput)
	}

	status := b.Status
	if status == "" {
		status = domain.BasketOpen
	}

	query := `
		INSERT INTO baskets (basket_id, employee_id, terminal_id, customer_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(basket_id) DO UPDATE SET
			employee_id = excluded.employee_id,
			terminal_id = excluded.terminal_id,
			customer_id = excluded.customer_id,
			status = excluded.status
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		b.BasketID, b.EmployeeID, b.TerminalID,
		nullString(b.CustomerID), status, b.StartedAt,
	)
	return err
}

// GetBasket retrieves a basket with its items.
func (r *SQLRepository) GetBasket(ctx context.Context, basketID string) (*domain.Basket, error) {
	query := `
		SELECT basket_id, employee_id, terminal_id, customer_id, status, started_at
		FROM baskets
		WHERE basket_id = ?
	`

	var b domain.Basket
	var customerID sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), basketID).Scan(
		&b.BasketID, &b.EmployeeID, &b.TerminalID,
		&customerID, &b.Status, &b.StartedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.CustomerID = customerID.String

	itemsQuery := `
		SELECT item_id, basket_id, product_id, product_name, quantity, price, added_at
		FROM basket_items
		WHERE basket_id = ?
		ORDER BY added_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(itemsQuery), basketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.BasketItem
		if err := rows.Scan(
			&item.ItemID, &item.BasketID, &item.ProductID,
			&item.ProductName, &item.Quantity, &item.Price, &item.AddedAt,
		); err != nil {
			return nil, err
		}
		b.Items = append(b.Items, item)
	}

	return &b, rows.Err()
}

// AppendBasketItem adds a line item to a basket.
func (r *SQLRepository) AppendBasketItem(ctx context.Context, basketID string, item *domain.BasketItem) (*domain.BasketItem, error) {
	if basketID == "" {
		return nil, fmt.Errorf("%w: basketID is required", ErrInvalidInput)
	}

	stored := *item
	stored.BasketID = basketID
	if stored.Quantity <= 0 {
		stored.Quantity = 1
	}
	if stored.AddedAt.IsZero() {
		stored.AddedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO basket_items (item_id, basket_id, product_id, product_name, quantity, price, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		stored.ItemID, stored.BasketID, stored.ProductID,
		stored.ProductName, stored.Quantity, stored.Price, stored.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// SetBasketCustomer associates a customer with an existing basket.
func (r *SQLRepository) SetBasketCustomer(ctx context.Context, basketID, customerID string) error {
	query := `UPDATE baskets SET customer_id = ? WHERE basket_id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), customerID, basketID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCustomer stores or refreshes a locally cached customer record.
func (r *SQLRepository) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c.CustomerID == "" {
		return fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO customers (customer_id, identifier, first_name, last_name, email, phone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			identifier = excluded.identifier,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.CustomerID, c.Identifier, c.FirstName, c.LastName,
		c.Email, c.Phone, updatedAt,
	)
	return err
}

// GetCustomerByIdentifier retrieves a customer by loyalty identifier.
func (r *SQLRepository) GetCustomerByIdentifier(ctx context.Context, identifier string) (*domain.Customer, error) {
	query := `
		SELECT customer_id, identifier, first_name, last_name, email, phone, updated_at
		FROM customers
		WHERE identifier = ?
	`

	var c domain.Customer
	err := r.db.QueryRowContext(ctx, r.rebind(query), identifier).Scan(
		&c.CustomerID, &c.Identifier, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone, &c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LogCustomerLookup records one external lookup attempt for audit.
func (r *SQLRepository) LogCustomerLookup(ctx context.Context, l *domain.CustomerLookupLog) error {
	query := `
		INSERT INTO customer_lookup_log (basket_id, identifier, status, error, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		l.BasketID, l.Identifier, l.Status, l.Error, l.DurationMs, l.Timestamp,
	)
	return err
}

// SaveFraudRule stores or updates a fraud rule.
func (r *SQLRepository) SaveFraudRule(ctx context.Context, rule *domain.FraudRule) error {
	if rule.RuleID == "" {
		return fmt.Errorf("%w: ruleID is required", ErrInvalidInput)
	}

	kinds, _ := json.Marshal(rule.EventKinds)
	now := time.Now().UTC()
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO fraud_rules (
			rule_id, name, description, severity, time_window_secs,
			threshold, expression, event_kinds, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			severity = excluded.severity,
			time_window_secs = excluded.time_window_secs,
			threshold = excluded.threshold,
			expression = excluded.expression,
			event_kinds = excluded.event_kinds,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.RuleID, rule.Name, rule.Description, rule.Severity,
		rule.TimeWindowSecs, rule.Threshold, rule.Expression, string(kinds),
		boolToInt(rule.Enabled), createdAt, now,
	)
	return err
}

// GetFraudRule retrieves a fraud rule by ID.
func (r *SQLRepository) GetFraudRule(ctx context.Context, ruleID string) (*domain.FraudRule, error) {
	query := `
		SELECT rule_id, name, description, severity, time_window_secs,
			   threshold, expression, event_kinds, enabled, created_at, updated_at
		FROM fraud_rules
		WHERE rule_id = ?
	`

	rule, err := scanFraudRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListFraudRules retrieves all fraud rules, enabled or not; the engine
// filters on reload.
func (r *SQLRepository) ListFraudRules(ctx context.Context) ([]*domain.FraudRule, error) {
	query := `
		SELECT rule_id, name, description, severity, time_window_secs,
			   threshold, expression, event_kinds, enabled, created_at, updated_at
		FROM fraud_rules
		ORDER BY rule_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FraudRule
	for rows.Next() {
		rule, err := scanFraudRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFraudRule(row rowScanner) (*domain.FraudRule, error) {
	var rule domain.FraudRule
	var kinds sql.NullString
	var expression sql.NullString
	var enabled int

	err := row.Scan(
		&rule.RuleID, &rule.Name, &rule.Description, &rule.Severity,
		&rule.TimeWindowSecs, &rule.Threshold, &expression, &kinds,
		&enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Expression = expression.String
	rule.Enabled = enabled == 1
	if kinds.String != "" {
		json.Unmarshal([]byte(kinds.String), &rule.EventKinds)
	}
	return &rule, nil
}

// SaveFraudAlert stores a detected violation.
func (r *SQLRepository) SaveFraudAlert(ctx context.Context, a *domain.FraudAlert) error {
	if a.AlertID == "" {
		return fmt.Errorf("%w: alertID is required", ErrInvalidInput)
	}

	details, _ := json.Marshal(a.Details)

	query := `
		INSERT INTO fraud_alerts (
			alert_id, rule_id, employee_id, terminal_id, basket_id,
			severity, details, acknowledged, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.AlertID, a.RuleID, a.EmployeeID, a.TerminalID, a.BasketID,
		a.Severity, string(details), boolToInt(a.Acknowledged), a.Timestamp,
	)
	return err
}

// ListFraudAlerts retrieves recent alerts, newest first.
func (r *SQLRepository) ListFraudAlerts(ctx context.Context, limit int) ([]*domain.FraudAlert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT alert_id, rule_id, employee_id, terminal_id, basket_id,
			   severity, details, acknowledged, timestamp
		FROM fraud_alerts
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		var a domain.FraudAlert
		var details string
		var acknowledged int

		if err := rows.Scan(
			&a.AlertID, &a.RuleID, &a.EmployeeID, &a.TerminalID, &a.BasketID,
			&a.Severity, &details, &acknowledged, &a.Timestamp,
		); err != nil {
			return nil, err
		}

		a.Acknowledged = acknowledged == 1
		if details != "" {
			json.Unmarshal([]byte(details), &a.Details)
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// AcknowledgeFraudAlert marks an alert as reviewed by an operator.
func (r *SQLRepository) AcknowledgeFraudAlert(ctx context.Context, alertID string) error {
	query := `UPDATE fraud_alerts SET acknowledged = 1 WHERE alert_id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), alertID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAgeViolation appends an age verification violation record.
func (r *SQLRepository) SaveAgeViolation(ctx context.Context, v *domain.AgeViolation) error {
	if v.ViolationID == "" {
		return fmt.Errorf("%w: violationID is required", ErrInvalidInput)
	}

	details, _ := json.Marshal(v.Details)

	query := `
		INSERT INTO age_violations (
			violation_id, basket_id, employee_id, terminal_id,
			violation_type, details, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ViolationID, v.BasketID, v.EmployeeID, v.TerminalID,
		v.ViolationType, string(details), v.Timestamp,
	)
	return err
}

// ListAgeViolations retrieves violations, optionally scoped to a basket.
func (r *SQLRepository) ListAgeViolations(ctx context.Context, basketID string) ([]*domain.AgeViolation, error) {
	query := `
		SELECT violation_id, basket_id, employee_id, terminal_id,
			   violation_type, details, timestamp
		FROM age_violations
	`
	var args []any
	if basketID != "" {
		query += ` WHERE basket_id = ?`
		args = append(args, basketID)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []*domain.AgeViolation
	for rows.Next() {
		var v domain.AgeViolation
		var details string

		if err := rows.Scan(
			&v.ViolationID, &v.BasketID, &v.EmployeeID, &v.TerminalID,
			&v.ViolationType, &details, &v.Timestamp,
		); err != nil {
			return nil, err
		}

		if details != "" {
			json.Unmarshal([]byte(details), &v.Details)
		}
		violations = append(violations, &v)
	}

	return violations, rows.Err()
}

// SavePluginConfig stores or updates a plugin's configuration row.
func (r *SQLRepository) SavePluginConfig(ctx context.Context, cfg *domain.PluginConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: plugin name is required", ErrInvalidInput)
	}

	config, _ := json.Marshal(cfg.Config)

	query := `
		INSERT INTO plugin_configs (name, enabled, config, description, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			config = excluded.config,
			description = excluded.description,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cfg.Name, boolToInt(cfg.Enabled), string(config),
		cfg.Description, time.Now().UTC(),
	)
	return err
}

// GetPluginConfig retrieves one plugin's configuration row.
func (r *SQLRepository) GetPluginConfig(ctx context.Context, name string) (*domain.PluginConfig, error) {
	query := `
		SELECT name, enabled, config, description, updated_at
		FROM plugin_configs
		WHERE name = ?
	`

	cfg, err := scanPluginConfig(r.db.QueryRowContext(ctx, r.rebind(query), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListPluginConfigs retrieves all plugin configuration rows.
func (r *SQLRepository) ListPluginConfigs(ctx context.Context) ([]*domain.PluginConfig, error) {
	query := `
		SELECT name, enabled, config, description, updated_at
		FROM plugin_configs
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.PluginConfig
	for rows.Next() {
		cfg, err := scanPluginConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

func scanPluginConfig(row rowScanner) (*domain.PluginConfig, error) {
	var cfg domain.PluginConfig
	var config sql.NullString
	var description sql.NullString
	var enabled int

	err := row.Scan(&cfg.Name, &enabled, &config, &description, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	cfg.Description = description.String
	if config.String != "" {
		json.Unmarshal([]byte(config.String), &cfg.Config)
	}
	return &cfg, nil
}

// CreateTimeEntry opens a clock-in record.
func (r *SQLRepository) CreateTimeEntry(ctx context.Context, e *domain.TimeEntry) error {
	if e.EntryID == "" {
		return fmt.Errorf("%w: entryID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO time_entries (entry_id, employee_id, terminal_id, clock_in, clock_out, total_hours)
		VALUES (?, ?, ?, ?, NULL, 0)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		e.EntryID, e.EmployeeID, e.TerminalID, e.ClockIn,
	)
	return err
}

// CloseTimeEntry closes the most recent open entry for the employee on
// the terminal, computing total hours.
func (r *SQLRepository) CloseTimeEntry(ctx context.Context, employeeID, terminalID string, clockOut time.Time) (*domain.TimeEntry, error) {
	query := `
		SELECT entry_id, employee_id, terminal_id, clock_in
		FROM time_entries
		WHERE employee_id = ? AND terminal_id = ? AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`

	var e domain.TimeEntry
	err := r.db.QueryRowContext(ctx, r.rebind(query), employeeID, terminalID).Scan(
		&e.EntryID, &e.EmployeeID, &e.TerminalID, &e.ClockIn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.ClockOut = clockOut
	e.TotalHours = clockOut.Sub(e.ClockIn).Hours()

	update := `UPDATE time_entries SET clock_out = ?, total_hours = ? WHERE entry_id = ?`
	if _, err := r.db.ExecContext(ctx, r.rebind(update), e.ClockOut, e.TotalHours, e.EntryID); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListTimeEntries retrieves an employee's entries, newest first.
func (r *SQLRepository) ListTimeEntries(ctx context.Context, employeeID string) ([]*domain.TimeEntry, error) {
	query := `
		SELECT entry_id, employee_id, terminal_id, clock_in, clock_out, total_hours
		FROM time_entries
		WHERE employee_id = ?
		ORDER BY clock_in DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.TimeEntry
	for rows.Next() {
		var e domain.TimeEntry
		var clockOut sql.NullTime

		if err := rows.Scan(
			&e.EntryID, &e.EmployeeID, &e.TerminalID,
			&e.ClockIn, &clockOut, &e.TotalHours,
		); err != nil {
			return nil, err
		}

		if clockOut.Valid {
			e.ClockOut = clockOut.Time
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SaveRecommendationRule stores or updates a product pairing rule.
func (r *SQLRepository) SaveRecommendationRule(ctx context.Context, rule *domain.RecommendationRule) error {
	if rule.SourceProductID == "" || rule.RecommendedProductID == "" {
		return fmt.Errorf("%w: product IDs are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO recommendation_rules (
			source_product_id, recommended_product_id, recommended_name,
			recommended_price, priority, active
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_product_id, recommended_product_id) DO UPDATE SET
			recommended_name = excluded.recommended_name,
			recommended_price = excluded.recommended_price,
			priority = excluded.priority,
			active = excluded.active
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.SourceProductID, rule.RecommendedProductID, rule.RecommendedName,
		rule.RecommendedPrice, rule.Priority, boolToInt(rule.Active),
	)
	return err
}

// ListRecommendationRules retrieves active pairing rules for a product,
// highest priority first.
func (r *SQLRepository) ListRecommendationRules(ctx context.Context, sourceProductID string) ([]*domain.RecommendationRule, error) {
	query := `
		SELECT source_product_id, recommended_product_id, recommended_name,
			   recommended_price, priority, active
		FROM recommendation_rules
		WHERE source_product_id = ? AND active = 1
		ORDER BY priority
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sourceProductID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RecommendationRule
	for rows.Next() {
		var rule domain.RecommendationRule
		var active int

		if err := rows.Scan(
			&rule.SourceProductID, &rule.RecommendedProductID, &rule.RecommendedName,
			&rule.RecommendedPrice, &rule.Priority, &active,
		); err != nil {
			return nil, err
		}

		rule.Active = active == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveRecommendation stores a surfaced suggestion.
func (r *SQLRepository) SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: recommendation ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO recommendations (
			id, basket_id, source_product_id, recommended_product_id,
			recommended_name, recommended_price, reason, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.BasketID, rec.SourceProductID, rec.RecommendedProductID,
		rec.RecommendedName, rec.RecommendedPrice, rec.Reason, rec.Status, rec.CreatedAt,
	)
	return err
}

// ListRecommendations retrieves suggestions for a basket.
func (r *SQLRepository) ListRecommendations(ctx context.Context, basketID string) ([]*domain.Recommendation, error) {
	query := `
		SELECT id, basket_id, source_product_id, recommended_product_id,
			   recommended_name, recommended_price, reason, status, created_at
		FROM recommendations
		WHERE basket_id = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), basketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(
			&rec.ID, &rec.BasketID, &rec.SourceProductID, &rec.RecommendedProductID,
			&rec.RecommendedName, &rec.RecommendedPrice, &rec.Reason, &rec.Status, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
