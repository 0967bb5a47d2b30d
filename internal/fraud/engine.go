package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openretail-labs/magpie/internal/domain"
)

// builtinInterest maps each built-in rule to the event kinds that trigger
// its evaluation. rapid_items also listens on basket.started so state is
// initialized before the first item arrives; that path never violates.
var builtinInterest = map[string][]domain.Kind{
	domain.RuleMultipleTerminals: {domain.KindEmployeeLogin},
	domain.RuleRapidItems:        {domain.KindBasketStarted, domain.KindItemAdded},
	domain.RuleHighValuePayment:  {domain.KindPaymentCompleted},
	domain.RuleAnonymousPayment:  {domain.KindPaymentCompleted},
	domain.RuleRapidCheckout:     {domain.KindPaymentCompleted},
}

// Engine evaluates fraud rules against derived state on each relevant
// event. Built-in rules have hardwired semantics; custom rules carry a CEL
// expression over a snapshot of the same state.
type Engine struct {
	mu      sync.RWMutex
	store   *Store
	builtin []*domain.FraudRule
	custom  []*compiledRule

	celEnv *celEnv
	now    func() time.Time
}

// NewEngine creates an engine bound to a state store.
func NewEngine(store *Store) (*Engine, error) {
	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	return &Engine{
		store:  store,
		celEnv: env,
		now:    time.Now,
	}, nil
}

// ReloadRules replaces the loaded rule set. Disabled rules are skipped;
// custom rules are compiled up front so evaluation never parses.
func (en *Engine) ReloadRules(rules []*domain.FraudRule) error {
	var builtin []*domain.FraudRule
	var custom []*compiledRule

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if _, ok := builtinInterest[r.RuleID]; ok {
			builtin = append(builtin, r)
			continue
		}
		if r.Expression == "" {
			return fmt.Errorf("rule %s: unknown builtin and no expression", r.RuleID)
		}
		c, err := en.celEnv.compile(r)
		if err != nil {
			return err
		}
		custom = append(custom, c)
	}

	en.mu.Lock()
	en.builtin = builtin
	en.custom = custom
	en.mu.Unlock()
	return nil
}

// RulesCount returns the number of loaded, enabled rules.
func (en *Engine) RulesCount() int {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return len(en.builtin) + len(en.custom)
}

// LoadedRules returns the currently loaded, enabled rules.
func (en *Engine) LoadedRules() []*domain.FraudRule {
	en.mu.RLock()
	defer en.mu.RUnlock()
	out := make([]*domain.FraudRule, 0, len(en.builtin)+len(en.custom))
	out = append(out, en.builtin...)
	for _, c := range en.custom {
		out = append(out, c.rule)
	}
	return out
}

// Evaluate runs every loaded rule whose interest set contains the event
// kind and returns one alert per violation. Re-triggering the same rule on
// a later event produces a new alert: each violation instance is
// independently reportable.
func (en *Engine) Evaluate(ctx context.Context, e *domain.Event) []*domain.FraudAlert {
	en.mu.RLock()
	builtin := en.builtin
	custom := en.custom
	en.mu.RUnlock()

	var alerts []*domain.FraudAlert
	for _, r := range builtin {
		if !kindIn(builtinInterest[r.RuleID], e.Kind) {
			continue
		}
		if details := en.checkBuiltin(r, e); details != nil {
			alerts = append(alerts, en.newAlert(r, e, details))
		}
	}
	for _, c := range custom {
		if !kindIn(c.rule.EventKinds, e.Kind) {
			continue
		}
		if details := en.evalExpression(ctx, c, e); details != nil {
			alerts = append(alerts, en.newAlert(c.rule, e, details))
		}
	}
	return alerts
}

func (en *Engine) checkBuiltin(r *domain.FraudRule, e *domain.Event) map[string]any {
	switch r.RuleID {
	case domain.RuleMultipleTerminals:
		return en.checkMultipleTerminals(r, e)
	case domain.RuleRapidItems:
		return en.checkRapidItems(r, e)
	case domain.RuleHighValuePayment:
		return en.checkHighValuePayment(r, e)
	case domain.RuleAnonymousPayment:
		return en.checkAnonymousPayment(r, e)
	case domain.RuleRapidCheckout:
		return en.checkRapidCheckout(r, e)
	}
	return nil
}

// checkMultipleTerminals: distinct terminals for one employee within the
// session's lifetime reach the threshold.
func (en *Engine) checkMultipleTerminals(r *domain.FraudRule, e *domain.Event) map[string]any {
	sess, ok := en.store.EmployeeSession(e.EmployeeID())
	if !ok {
		return nil
	}
	if len(sess.TerminalIDs) < int(r.Threshold) {
		return nil
	}
	return map[string]any{
		"rule_name":    r.Name,
		"threshold":    r.Threshold,
		"actual_value": len(sess.TerminalIDs),
		"terminals":    sess.TerminalIDs,
	}
}

// checkRapidItems: item additions within the window reach the threshold.
func (en *Engine) checkRapidItems(r *domain.FraudRule, e *domain.Event) map[string]any {
	if e.Kind == domain.KindBasketStarted {
		return nil
	}
	window := time.Duration(r.TimeWindowSecs) * time.Second
	count := en.store.RecentItemCount(e.BasketID(), window)
	if count < int(r.Threshold) {
		return nil
	}
	return map[string]any{
		"rule_name":    r.Name,
		"threshold":    r.Threshold,
		"actual_value": count,
		"time_window":  r.TimeWindowSecs,
	}
}

// checkHighValuePayment: a payment at or above the threshold inside a
// session younger than the window.
func (en *Engine) checkHighValuePayment(r *domain.FraudRule, e *domain.Event) map[string]any {
	sess, ok := en.store.EmployeeSession(e.EmployeeID())
	if !ok {
		return nil
	}
	sessionAge := en.now().Sub(sess.LoginTime)
	amount := e.Float(domain.AttrAmount)
	if sessionAge > time.Duration(r.TimeWindowSecs)*time.Second || amount < r.Threshold {
		return nil
	}
	return map[string]any{
		"rule_name":        r.Name,
		"threshold":        r.Threshold,
		"actual_value":     amount,
		"session_duration": sessionAge.Seconds(),
	}
}

// checkAnonymousPayment: a payment at or above the threshold with no
// identified customer on the basket.
func (en *Engine) checkAnonymousPayment(r *domain.FraudRule, e *domain.Event) map[string]any {
	b, ok := en.store.BasketState(e.BasketID())
	if !ok {
		return nil
	}
	amount := e.Float(domain.AttrAmount)
	if amount < r.Threshold || b.CustomerIdentified {
		return nil
	}
	return map[string]any{
		"rule_name":           r.Name,
		"threshold":           r.Threshold,
		"actual_value":        amount,
		"customer_identified": false,
	}
}

// checkRapidCheckout: basket completed within the window of its start.
func (en *Engine) checkRapidCheckout(r *domain.FraudRule, e *domain.Event) map[string]any {
	b, ok := en.store.BasketState(e.BasketID())
	if !ok {
		return nil
	}
	checkoutDuration := en.now().Sub(b.StartTime)
	if checkoutDuration > time.Duration(r.TimeWindowSecs)*time.Second {
		return nil
	}
	return map[string]any{
		"rule_name":    r.Name,
		"threshold":    r.TimeWindowSecs,
		"actual_value": checkoutDuration.Seconds(),
		"item_count":   b.ItemCount,
	}
}

// newAlert builds the alert record for one violation. The terminal falls
// back to the basket's terminal when the event carries none.
func (en *Engine) newAlert(r *domain.FraudRule, e *domain.Event, details map[string]any) *domain.FraudAlert {
	terminalID := e.TerminalID()
	if terminalID == "" {
		if b, ok := en.store.BasketState(e.BasketID()); ok {
			terminalID = b.TerminalID
		}
	}
	return &domain.FraudAlert{
		AlertID:    uuid.New().String(),
		RuleID:     r.RuleID,
		EmployeeID: e.EmployeeID(),
		TerminalID: terminalID,
		BasketID:   e.BasketID(),
		Severity:   r.Severity,
		Details:    details,
		Timestamp:  en.now(),
	}
}

func kindIn(kinds []domain.Kind, k domain.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}
