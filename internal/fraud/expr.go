package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/openretail-labs/magpie/internal/domain"
)

// celEnv wraps the CEL environment custom rules are compiled against.
// Expressions see a snapshot of derived state plus the triggering event's
// amount, and must return bool.
type celEnv struct {
	env *cel.Env
}

// compiledRule holds a pre-compiled CEL program for a custom rule.
type compiledRule struct {
	rule    *domain.FraudRule
	program cel.Program
}

func newCELEnv() (*celEnv, error) {
	env, err := cel.NewEnv(
		cel.Variable("event_kind", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("terminal_count", cel.IntType),
		cel.Variable("velocity_count", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("session_age_seconds", cel.DoubleType),
		cel.Variable("basket_age_seconds", cel.DoubleType),
		cel.Variable("total_payments", cel.DoubleType),
		cel.Variable("customer_identified", cel.BoolType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("time_window", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	return &celEnv{env: env}, nil
}

func (ce *celEnv) compile(r *domain.FraudRule) (*compiledRule, error) {
	ast, issues := ce.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %s: %w", r.RuleID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", r.RuleID, ast.OutputType())
	}
	program, err := ce.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program for rule %s: %w", r.RuleID, err)
	}
	return &compiledRule{rule: r, program: program}, nil
}

// evalExpression evaluates one custom rule against the current state
// snapshot. Evaluation errors are logged and treated as no-violation.
func (en *Engine) evalExpression(ctx context.Context, c *compiledRule, e *domain.Event) map[string]any {
	now := en.now()

	activation := map[string]any{
		"event_kind":          string(e.Kind),
		"amount":              e.Float(domain.AttrAmount),
		"terminal_count":      0,
		"velocity_count":      0,
		"item_count":          0,
		"session_age_seconds": 0.0,
		"basket_age_seconds":  0.0,
		"total_payments":      0.0,
		"customer_identified": false,
		"threshold":           c.rule.Threshold,
		"time_window":         c.rule.TimeWindowSecs,
	}

	if sess, ok := en.store.EmployeeSession(e.EmployeeID()); ok {
		activation["terminal_count"] = len(sess.TerminalIDs)
		activation["session_age_seconds"] = now.Sub(sess.LoginTime).Seconds()
		activation["total_payments"] = sess.TotalPayments
	}
	if b, ok := en.store.BasketState(e.BasketID()); ok {
		activation["item_count"] = b.ItemCount
		activation["basket_age_seconds"] = now.Sub(b.StartTime).Seconds()
		activation["customer_identified"] = b.CustomerIdentified
	}
	if c.rule.TimeWindowSecs > 0 {
		window := time.Duration(c.rule.TimeWindowSecs) * time.Second
		activation["velocity_count"] = en.store.RecentItemCount(e.BasketID(), window)
	}

	out, _, err := c.program.Eval(activation)
	if err != nil {
		slog.Error("rule expression evaluation failed",
			"rule_id", c.rule.RuleID,
			"error", err,
		)
		return nil
	}
	if out != types.True {
		return nil
	}
	return map[string]any{
		"rule_name":  c.rule.Name,
		"threshold":  c.rule.Threshold,
		"expression": c.rule.Expression,
	}
}
