package repository

// Schema definitions for Magpie's database.
// Compatible with both SQLite and PostgreSQL.

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    product_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    category TEXT,
    age_restricted INTEGER NOT NULL DEFAULT 0,
    minimum_age INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
`

const schemaBaskets = `
CREATE TABLE IF NOT EXISTS baskets (
    basket_id TEXT PRIMARY KEY,
    employee_id TEXT NOT NULL,
    terminal_id TEXT NOT NULL,
    customer_id TEXT,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS basket_items (
    item_id TEXT PRIMARY KEY,
    basket_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    product_name TEXT,
    quantity INTEGER NOT NULL DEFAULT 1,
    price REAL NOT NULL DEFAULT 0,
    added_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_baskets_employee ON baskets(employee_id);
CREATE INDEX IF NOT EXISTS idx_basket_items_basket ON basket_items(basket_id);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT PRIMARY KEY,
    identifier TEXT NOT NULL UNIQUE,
    first_name TEXT,
    last_name TEXT,
    email TEXT,
    phone TEXT,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_lookup_log (
    basket_id TEXT,
    identifier TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_identifier ON customers(identifier);
CREATE INDEX IF NOT EXISTS idx_lookup_log_identifier ON customer_lookup_log(identifier);
`

const schemaFraud = `
CREATE TABLE IF NOT EXISTS fraud_rules (
    rule_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    severity TEXT NOT NULL,
    time_window_secs INTEGER NOT NULL DEFAULT 0,
    threshold REAL NOT NULL DEFAULT 0,
    expression TEXT,
    event_kinds TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS fraud_alerts (
    alert_id TEXT PRIMARY KEY,
    rule_id TEXT NOT NULL,
    employee_id TEXT,
    terminal_id TEXT,
    basket_id TEXT,
    severity TEXT NOT NULL,
    details TEXT,
    acknowledged INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_rule ON fraud_alerts(rule_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_timestamp ON fraud_alerts(timestamp);
`

const schemaAgeViolations = `
CREATE TABLE IF NOT EXISTS age_violations (
    violation_id TEXT PRIMARY KEY,
    basket_id TEXT NOT NULL,
    employee_id TEXT,
    terminal_id TEXT,
    violation_type TEXT NOT NULL,
    details TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_age_violations_basket ON age_violations(basket_id);
`

const schemaPluginConfigs = `
CREATE TABLE IF NOT EXISTS plugin_configs (
    name TEXT PRIMARY KEY,
    enabled INTEGER NOT NULL DEFAULT 1,
    config TEXT,
    description TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaTimeEntries = `
CREATE TABLE IF NOT EXISTS time_entries (
    entry_id TEXT PRIMARY KEY,
    employee_id TEXT NOT NULL,
    terminal_id TEXT NOT NULL,
    clock_in TIMESTAMP NOT NULL,
    clock_out TIMESTAMP,
    total_hours REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_time_entries_employee ON time_entries(employee_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_open ON time_entries(employee_id, terminal_id, clock_out);
`

const schemaRecommendations = `
CREATE TABLE IF NOT EXISTS recommendation_rules (
    source_product_id TEXT NOT NULL,
    recommended_product_id TEXT NOT NULL,
    recommended_name TEXT NOT NULL,
    recommended_price REAL NOT NULL DEFAULT 0,
    priority INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (source_product_id, recommended_product_id)
);

CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    basket_id TEXT NOT NULL,
    source_product_id TEXT NOT NULL,
    recommended_product_id TEXT NOT NULL,
    recommended_name TEXT,
    recommended_price REAL NOT NULL DEFAULT 0,
    reason TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_basket ON recommendations(basket_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProducts,
		schemaBaskets,
		schemaCustomers,
		schemaFraud,
		schemaAgeViolations,
		schemaPluginConfigs,
		schemaTimeEntries,
		schemaRecommendations,
	}
}
