// Package sink delivers best-effort realtime pushes to terminal and
// basket listener groups.
package sink

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/openretail-labs/magpie/internal/domain"
)

// LogSink writes pushes to the structured log. Used in single-node
// deployments where no realtime transport is configured.
type LogSink struct{}

// NewLogSink creates a log-backed sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) PushToGroup(ctx context.Context, group string, payload map[string]any) error {
	slog.Info("realtime push", "group", group, "payload", payload)
	return nil
}

// BusSink publishes pushes onto the event bus under the realtime topic
// prefix, one topic per group. Frontend gateways subscribe to the groups
// for the terminals they serve.
type BusSink struct {
	bus domain.EventBus
}

// NewBusSink creates a bus-backed sink.
func NewBusSink(bus domain.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) PushToGroup(ctx context.Context, group string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, domain.TopicRealtimePrefix+group, data)
}
