package plugin

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openretail-labs/magpie/internal/dedup"
	"github.com/openretail-labs/magpie/internal/domain"
)

var tracer = otel.Tracer("magpie-router")

// Router dispatches deduplicated events to every enabled, interested
// plugin. Dispatch for one event is synchronous and sequential in
// registration order; a plugin failure is caught and logged without
// aborting the loop. There is exactly one dispatch loop per process, so no
// two events touching the same key are processed concurrently.
type Router struct {
	mu      sync.RWMutex
	plugins []Plugin // registration order

	dedup   *dedup.Deduplicator
	configs ConfigSource
}

// NewRouter creates a router. configs may be nil, in which case every
// registered plugin is treated as enabled.
func NewRouter(d *dedup.Deduplicator, configs ConfigSource) *Router {
	return &Router{
		dedup:   d,
		configs: configs,
	}
}

// Register appends a plugin. Registration order is dispatch order.
func (r *Router) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
	slog.Info("registered plugin", "plugin", p.Name())
}

// Plugins returns the registered plugins in registration order.
func (r *Router) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Route delivers one event: dedup first, then fan-out to enabled plugins
// whose interest set contains the event kind. Routing the same content
// twice within the dedup window is an idempotent no-op.
func (r *Router) Route(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		slog.Warn("dropping malformed event", "error", err)
		return nil
	}

	ctx, span := tracer.Start(ctx, "router.Route",
		trace.WithAttributes(attribute.String("event.kind", string(e.Kind))),
	)
	defer span.End()

	if r.dedup != nil && r.dedup.IsDuplicate(e) {
		slog.Debug("duplicate event dropped", "kind", e.Kind, "basket_id", e.BasketID())
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		return nil
	}

	enabled := r.enabledSet(ctx)

	for _, p := range r.Plugins() {
		if enabled != nil {
			if on, known := enabled[p.Name()]; !known || !on {
				continue
			}
		}
		if !interested(p, e.Kind) {
			continue
		}
		r.dispatch(ctx, p, e)
	}
	return nil
}

// dispatch invokes one handler, containing both errors and panics.
func (r *Router) dispatch(ctx context.Context, p Plugin, e *domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("plugin panicked",
				"plugin", p.Name(),
				"kind", e.Kind,
				"panic", rec,
			)
		}
	}()

	if err := p.Handle(ctx, e.Kind, e); err != nil {
		slog.Error("plugin handler failed",
			"plugin", p.Name(),
			"kind", e.Kind,
			"error", err,
		)
	}
}

// enabledSet loads the current plugin enablement fresh from configuration.
// A nil result means enablement is unknown and all registered plugins run;
// a config read failure must not stall the dispatch loop.
func (r *Router) enabledSet(ctx context.Context) map[string]bool {
	if r.configs == nil {
		return nil
	}
	cfgs, err := r.configs.ListPluginConfigs(ctx)
	if err != nil {
		slog.Error("failed to load plugin configs, dispatching to all registered plugins", "error", err)
		return nil
	}
	enabled := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		enabled[c.Name] = c.Enabled
	}
	return enabled
}

func interested(p Plugin, kind domain.Kind) bool {
	for _, k := range p.Interested() {
		if k == kind {
			return true
		}
	}
	return false
}
