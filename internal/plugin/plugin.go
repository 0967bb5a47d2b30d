// Package plugin provides the capability interface and the event router
// that fans deduplicated events out to enabled plugins.
package plugin

import (
	"context"

	"github.com/openretail-labs/magpie/internal/domain"
)

// Plugin is a polymorphic handler unit. Implementations declare the event
// kinds they accept and react to matching events. Handlers must be fast,
// local computations; calls to external systems apply their own timeouts.
//
// Plugins must not depend on sibling plugin ordering: two plugins may react
// to the same event and neither may assume the other has already run.
// Durable state lives in the long-lived state stores, not in the plugin.
type Plugin interface {
	// Name is the unique plugin name, matching its PluginConfig row.
	Name() string

	// Interested returns the event kinds this plugin handles.
	Interested() []domain.Kind

	// Handle reacts to one event. Errors are logged at the router
	// boundary and never propagate to sibling plugins.
	Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error
}

// ConfigSource supplies the live plugin enablement set. Reads are fresh on
// every dispatch cycle so administrative toggles apply without restart.
type ConfigSource interface {
	ListPluginConfigs(ctx context.Context) ([]*domain.PluginConfig, error)
}
