// Package consumer runs the event dispatch loop.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/plugin"
)

var tracer = otel.Tracer("magpie-consumer")

// Consumer subscribes to the POS event topic and feeds each decoded
// event through the router. There is exactly one consumer per process;
// the bus delivers messages for one subscription sequentially, which is
// what the per-key state stores rely on.
type Consumer struct {
	bus    domain.EventBus
	router *plugin.Router

	sub    domain.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a consumer bound to the router.
func New(bus domain.EventBus, router *plugin.Router) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		bus:    bus,
		router: router,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the POS event topic.
func (c *Consumer) Start() error {
	sub, err := c.bus.Subscribe(c.ctx, domain.TopicPOSEvents, c.handleMessage)
	if err != nil {
		return err
	}
	c.sub = sub

	slog.Info("event consumer started", "topic", domain.TopicPOSEvents)
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	e, err := domain.DecodeEvent(msg.Payload)
	if err != nil {
		// Malformed payloads are dropped, not retried.
		slog.Error("failed to decode event",
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	ctx, span := tracer.Start(ctx, "dispatch "+string(e.Kind),
		trace.WithAttributes(
			attribute.String("event.kind", string(e.Kind)),
			attribute.String("message.id", msg.ID),
		),
	)
	defer span.End()

	if err := c.router.Route(ctx, e); err != nil {
		slog.Error("event routing failed",
			"kind", e.Kind,
			"error", err,
		)
		return err
	}

	slog.Debug("event dispatched",
		"kind", e.Kind,
		"basket_id", e.BasketID(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop cancels the subscription and waits for in-flight delivery to
// drain via the bus's unsubscribe semantics.
func (c *Consumer) Stop() error {
	c.cancel()

	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", c.sub.Topic(),
				"error", err,
			)
		}
		c.sub = nil
	}

	slog.Info("event consumer stopped")
	return nil
}
