// Package recommend suggests companion items as products land in a basket.
package recommend

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/openretail-labs/magpie/internal/domain"
)

// PluginName matches the recommender plugin's configuration row.
const PluginName = "purchase_recommender"

const recommendationReason = "Frequently bought together"

// fallbackPairs is consulted when the repository has no active rules for
// a product. Keeps suggestions flowing while merchandising catches up.
var fallbackPairs = map[string][]domain.RecommendationRule{
	"BURGER": {
		{RecommendedProductID: "FRIES", RecommendedName: "French Fries", RecommendedPrice: 2.99},
		{RecommendedProductID: "COKE", RecommendedName: "Coca Cola", RecommendedPrice: 1.99},
	},
	"COFFEE": {
		{RecommendedProductID: "DONUT", RecommendedName: "Donut", RecommendedPrice: 1.99},
		{RecommendedProductID: "MUFFIN", RecommendedName: "Blueberry Muffin", RecommendedPrice: 2.49},
	},
	"LAPTOP": {
		{RecommendedProductID: "MOUSE", RecommendedName: "Wireless Mouse", RecommendedPrice: 29.99},
		{RecommendedProductID: "LAPTOP_BAG", RecommendedName: "Laptop Bag", RecommendedPrice: 39.99},
	},
	"PHONE": {
		{RecommendedProductID: "PHONE_CASE", RecommendedName: "Phone Case", RecommendedPrice: 19.99},
		{RecommendedProductID: "SCREEN_PROTECTOR", RecommendedName: "Screen Protector", RecommendedPrice: 9.99},
	},
	"PIZZA": {
		{RecommendedProductID: "GARLIC_BREAD", RecommendedName: "Garlic Bread", RecommendedPrice: 4.99},
		{RecommendedProductID: "SODA", RecommendedName: "Soda", RecommendedPrice: 2.49},
	},
}

// Plugin surfaces purchase recommendations when items are added.
type Plugin struct {
	repo domain.Repository
	sink domain.AlertSink
	bus  domain.EventBus
}

// NewPlugin creates the purchase recommender plugin.
func NewPlugin(repo domain.Repository, sink domain.AlertSink, bus domain.EventBus) *Plugin {
	return &Plugin{repo: repo, sink: sink, bus: bus}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Interested() []domain.Kind {
	return []domain.Kind{domain.KindItemAdded}
}

func (p *Plugin) Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error {
	if kind != domain.KindItemAdded {
		return nil
	}
	productID := e.String(domain.AttrProductID)
	basketID := e.BasketID()
	if productID == "" || basketID == "" {
		return nil
	}

	rules := p.rulesFor(ctx, productID)
	if len(rules) == 0 {
		return nil
	}

	recs := make([]*domain.Recommendation, 0, len(rules))
	payload := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		rec := &domain.Recommendation{
			ID:                   uuid.New().String(),
			BasketID:             basketID,
			SourceProductID:      productID,
			RecommendedProductID: rule.RecommendedProductID,
			RecommendedName:      rule.RecommendedName,
			RecommendedPrice:     rule.RecommendedPrice,
			Reason:               recommendationReason,
			Status:               "PENDING",
			CreatedAt:            e.EmittedAt,
		}
		if p.repo != nil {
			if err := p.repo.SaveRecommendation(ctx, rec); err != nil {
				slog.Error("failed to save recommendation",
					"basket_id", basketID, "product_id", rule.RecommendedProductID, "error", err)
				continue
			}
		}
		recs = append(recs, rec)
		payload = append(payload, map[string]any{
			"product_id": rule.RecommendedProductID,
			"name":       rule.RecommendedName,
			"price":      rule.RecommendedPrice,
		})
	}
	if len(recs) == 0 {
		return nil
	}

	slog.Info("recommendations suggested",
		"basket_id", basketID, "source_product_id", productID, "count", len(recs))

	if p.sink != nil {
		err := p.sink.PushToGroup(ctx, domain.RecommendationGroup(basketID), map[string]any{
			"type":              "recommendation",
			"basket_id":         basketID,
			"source_product_id": productID,
			"recommendations":   payload,
		})
		if err != nil {
			slog.Error("failed to push recommendations", "basket_id", basketID, "error", err)
		}
	}

	p.publish(ctx, basketID, productID, payload)
	return nil
}

// rulesFor reads active rules from the repository, falling back to the
// builtin pairings on error or empty result.
func (p *Plugin) rulesFor(ctx context.Context, productID string) []domain.RecommendationRule {
	if p.repo != nil {
		rules, err := p.repo.ListRecommendationRules(ctx, productID)
		if err != nil {
			slog.Warn("recommendation rule lookup failed, using builtin pairs",
				"product_id", productID, "error", err)
		} else if len(rules) > 0 {
			out := make([]domain.RecommendationRule, 0, len(rules))
			for _, r := range rules {
				if r.Active {
					out = append(out, *r)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return fallbackPairs[productID]
}

func (p *Plugin) publish(ctx context.Context, basketID, productID string, recs []map[string]any) {
	if p.bus == nil {
		return
	}
	data, err := domain.NewEvent(domain.KindRecommendationSuggested, map[string]any{
		domain.AttrBasketID: basketID,
		"source_product_id": productID,
		"recommendations":   recs,
	}).Encode()
	if err == nil {
		err = p.bus.Publish(ctx, domain.TopicPOSEvents, data)
	}
	if err != nil {
		slog.Error("failed to publish event", "kind", domain.KindRecommendationSuggested, "error", err)
	}
}
