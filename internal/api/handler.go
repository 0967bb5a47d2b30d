package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openretail-labs/magpie/internal/ageverify"
	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/fraud"
	"github.com/openretail-labs/magpie/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *fraud.Engine
	ageStore *ageverify.Store
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *fraud.Engine, ageStore *ageverify.Store, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		ageStore: ageStore,
		version:  version,
	}
}

// EventRequest is the request body for POST /events.
type EventRequest struct {
	Kind       domain.Kind    `json:"kind"`
	Attributes map[string]any `json:"attributes,omitempty"`
	EmittedAt  time.Time      `json:"emittedAt,omitempty"`
}

// PublishEvent handles POST /events: it validates the envelope and puts
// it on the bus. Processing is asynchronous; the dispatch loop picks the
// event up from the POS topic.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	e := domain.NewEvent(req.Kind, req.Attributes)
	if !req.EmittedAt.IsZero() {
		e.EmittedAt = req.EmittedAt
	}
	if err := e.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	payload, err := e.Encode()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode event",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicPOSEvents, payload); err != nil {
		slog.Error("failed to publish event", "kind", e.Kind, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus unavailable",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"kind":      e.Kind,
		"emittedAt": e.EmittedAt,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.LoadedRules() {
		if rule.RuleID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a fraud rule.
type CreateRuleRequest struct {
	RuleID         string        `json:"ruleId"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Severity       string        `json:"severity"`
	TimeWindowSecs int           `json:"timeWindowSecs"`
	Threshold      float64       `json:"threshold"`
	Expression     string        `json:"expression,omitempty"`
	EventKinds     []domain.Kind `json:"eventKinds,omitempty"`
	Enabled        bool          `json:"enabled"`
}

var builtinRuleIDs = map[string]bool{
	domain.RuleMultipleTerminals: true,
	domain.RuleRapidItems:        true,
	domain.RuleHighValuePayment:  true,
	domain.RuleAnonymousPayment:  true,
	domain.RuleRapidCheckout:     true,
}

// CreateRule creates or updates a fraud rule in the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.RuleID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ruleId and name are required",
		})
		return
	}
	if !builtinRuleIDs[req.RuleID] && req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "custom rules require an expression",
		})
		return
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityMedium
	}

	rule := &domain.FraudRule{
		RuleID:         req.RuleID,
		Name:           req.Name,
		Description:    req.Description,
		Severity:       req.Severity,
		TimeWindowSecs: req.TimeWindowSecs,
		Threshold:      req.Threshold,
		Expression:     req.Expression,
		EventKinds:     req.EventKinds,
		Enabled:        req.Enabled,
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveFraudRule(ctx, rule); err != nil {
		slog.Error("failed to save fraud rule", "rule_id", rule.RuleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("fraud rule created", "rule_id", rule.RuleID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListFraudRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("fraud rules reloaded from database", "count", h.engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

// ListAlerts returns recent fraud alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	alerts, err := h.repo.ListFraudAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list fraud alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AcknowledgeAlert marks an alert as reviewed.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	err := h.repo.AcknowledgeFraudAlert(r.Context(), alertID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to acknowledge alert", "alert_id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to acknowledge alert",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alertId":      alertID,
		"acknowledged": true,
	})
}

// ListPlugins returns all plugin configuration rows.
func (h *Handler) ListPlugins(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListPluginConfigs(r.Context())
	if err != nil {
		slog.Error("failed to list plugin configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list plugins",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": configs,
		"count":   len(configs),
	})
}

// UpdatePluginRequest is the request body for PUT /plugins/{name}.
type UpdatePluginRequest struct {
	Enabled     bool           `json:"enabled"`
	Config      map[string]any `json:"config,omitempty"`
	Description string         `json:"description,omitempty"`
}

// UpdatePlugin toggles or reconfigures a plugin. The router reads
// enablement fresh on every dispatch, so the change takes effect on the
// next event without restart.
func (h *Handler) UpdatePlugin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "plugin name is required",
		})
		return
	}

	var req UpdatePluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cfg := &domain.PluginConfig{
		Name:        name,
		Enabled:     req.Enabled,
		Config:      req.Config,
		Description: req.Description,
	}
	if err := h.repo.SavePluginConfig(r.Context(), cfg); err != nil {
		slog.Error("failed to save plugin config", "plugin", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save plugin config",
		})
		return
	}

	slog.Info("plugin config updated", "plugin", name, "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, cfg)
}

// GetVerification returns the live age-verification state for a basket.
// Advisory read: payment gating decisions belong to the till, not here.
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	basketID := chi.URLParam(r, "id")
	if basketID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "basket id is required",
		})
		return
	}

	state, ok := h.ageStore.Get(basketID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no verification state for basket",
		})
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// ListRecommendations returns surfaced suggestions for a basket.
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	basketID := chi.URLParam(r, "id")
	if basketID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "basket id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	recs, err := h.repo.ListRecommendations(r.Context(), basketID)
	if err != nil {
		slog.Error("failed to list recommendations", "basket_id", basketID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list recommendations",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// ListViolations returns age verification violations, optionally scoped
// to a basket via ?basket_id.
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	basketID := r.URL.Query().Get("basket_id")

	violations, err := h.repo.ListAgeViolations(r.Context(), basketID)
	if err != nil {
		slog.Error("failed to list age violations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list violations",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"violations": violations,
		"count":      len(violations),
	})
}

// ListTimeEntries returns an employee's clock-in/out history.
func (h *Handler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if employeeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "employee id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entries, err := h.repo.ListTimeEntries(r.Context(), employeeID)
	if err != nil {
		slog.Error("failed to list time entries", "employee_id", employeeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list time entries",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
