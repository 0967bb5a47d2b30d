package bus

import (
	"fmt"

	"github.com/openretail-labs/magpie/internal/domain"
)

// New creates a new event bus based on configuration.
// Single-process deployments use the channel bus; NATS backs
// multi-process ones.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
