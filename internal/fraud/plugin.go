package fraud

import (
	"context"
	"log/slog"

	"github.com/openretail-labs/magpie/internal/domain"
)

// PluginName matches the fraud plugin's configuration row.
const PluginName = "fraud_detection"

// Plugin wires the state store and rule engine into the router. The store
// and engine are long-lived singletons; the plugin itself holds no state.
type Plugin struct {
	store  *Store
	engine *Engine
	repo   domain.Repository
	sink   domain.AlertSink
	bus    domain.EventBus
}

// NewPlugin creates the fraud detection plugin. sink and bus may be nil in
// tests; alerts are then only persisted.
func NewPlugin(store *Store, engine *Engine, repo domain.Repository, sink domain.AlertSink, bus domain.EventBus) *Plugin {
	return &Plugin{
		store:  store,
		engine: engine,
		repo:   repo,
		sink:   sink,
		bus:    bus,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Interested() []domain.Kind {
	return []domain.Kind{
		domain.KindEmployeeLogin,
		domain.KindEmployeeLogout,
		domain.KindSessionTerminated,
		domain.KindBasketStarted,
		domain.KindItemAdded,
		domain.KindCustomerIdentified,
		domain.KindPaymentCompleted,
	}
}

// Handle updates derived state, then evaluates the rules interested in the
// event kind. Each violation yields exactly one alert record.
func (p *Plugin) Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error {
	p.store.Apply(e)

	for _, alert := range p.engine.Evaluate(ctx, e) {
		p.emit(ctx, alert)
	}
	return nil
}

// emit persists the alert, pushes it to the implicated terminals and
// publishes a fraud.alert event back onto the bus. Each delivery path is
// best-effort and independent.
func (p *Plugin) emit(ctx context.Context, alert *domain.FraudAlert) {
	slog.Warn("fraud alert",
		"rule_id", alert.RuleID,
		"employee_id", alert.EmployeeID,
		"terminal_id", alert.TerminalID,
		"basket_id", alert.BasketID,
		"severity", alert.Severity,
	)

	if p.repo != nil {
		if err := p.repo.SaveFraudAlert(ctx, alert); err != nil {
			slog.Error("failed to save fraud alert", "alert_id", alert.AlertID, "error", err)
		}
	}

	if p.sink != nil {
		payload := map[string]any{
			"type":      "fraud_alert",
			"alert_id":  alert.AlertID,
			"rule_id":   alert.RuleID,
			"severity":  alert.Severity,
			"details":   alert.Details,
			"timestamp": alert.Timestamp,
		}
		for _, terminalID := range p.implicatedTerminals(alert) {
			if err := p.sink.PushToGroup(ctx, domain.FraudAlertGroup(terminalID), payload); err != nil {
				slog.Error("failed to push fraud alert", "terminal_id", terminalID, "error", err)
			}
		}
	}

	if p.bus != nil {
		ev := domain.NewEvent(domain.KindFraudAlert, map[string]any{
			"alert_id":            alert.AlertID,
			"rule_id":             alert.RuleID,
			"severity":            alert.Severity,
			domain.AttrEmployeeID: alert.EmployeeID,
			domain.AttrTerminalID: alert.TerminalID,
			domain.AttrBasketID:   alert.BasketID,
			"details":             alert.Details,
		})
		data, err := ev.Encode()
		if err == nil {
			err = p.bus.Publish(ctx, domain.TopicPOSEvents, data)
		}
		if err != nil {
			slog.Error("failed to publish fraud alert event", "alert_id", alert.AlertID, "error", err)
		}
	}
}

// implicatedTerminals resolves which terminals receive the push: all
// terminals for a multi-terminal violation, else the alert's terminal.
func (p *Plugin) implicatedTerminals(alert *domain.FraudAlert) []string {
	if alert.RuleID == domain.RuleMultipleTerminals {
		if terminals, ok := alert.Details["terminals"].([]string); ok && len(terminals) > 0 {
			return terminals
		}
	}
	if alert.TerminalID != "" {
		return []string{alert.TerminalID}
	}
	return nil
}
