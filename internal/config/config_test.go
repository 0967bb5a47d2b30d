package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("Repository.Driver = %s, want sqlite", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("EventBus.Type = %s, want channel", cfg.EventBus.Type)
	}
	if cfg.Dispatch.DedupWindow != 5*time.Minute {
		t.Errorf("Dispatch.DedupWindow = %v, want 5m", cfg.Dispatch.DedupWindow)
	}
	if cfg.Dispatch.SessionTTL != 8*time.Hour {
		t.Errorf("Dispatch.SessionTTL = %v, want 8h", cfg.Dispatch.SessionTTL)
	}
	if cfg.Lookup.RetryAttempts != 2 {
		t.Errorf("Lookup.RetryAttempts = %d, want 2", cfg.Lookup.RetryAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %s, want json", cfg.Logging.Format)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAGPIE_PORT", "9090")
	t.Setenv("MAGPIE_DB_DRIVER", "postgres")
	t.Setenv("MAGPIE_POSTGRES_HOST", "db.internal")
	t.Setenv("MAGPIE_BUS", "nats")
	t.Setenv("MAGPIE_NATS_URL", "nats://broker:4222")
	t.Setenv("MAGPIE_DEDUP_WINDOW", "90s")
	t.Setenv("MAGPIE_CUSTOMER_API_URL", "http://crm.internal/api/customers")
	t.Setenv("MAGPIE_CACHE_TWO_PHASE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "postgres" || cfg.Repository.PostgresHost != "db.internal" {
		t.Errorf("Repository = %+v", cfg.Repository)
	}
	if cfg.EventBus.Type != "nats" || cfg.EventBus.NATSUrl != "nats://broker:4222" {
		t.Errorf("EventBus = %+v", cfg.EventBus)
	}
	if cfg.Dispatch.DedupWindow != 90*time.Second {
		t.Errorf("Dispatch.DedupWindow = %v, want 90s", cfg.Dispatch.DedupWindow)
	}
	if cfg.Lookup.APIEndpoint != "http://crm.internal/api/customers" {
		t.Errorf("Lookup.APIEndpoint = %s", cfg.Lookup.APIEndpoint)
	}
	if !cfg.Cache.EnableTwoPhase {
		t.Error("Cache.EnableTwoPhase = false, want true")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAGPIE_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed MAGPIE_PORT")
	}
}
