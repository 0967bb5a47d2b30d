package ageverify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/repository"
)

// PluginName matches the age verification plugin's configuration row.
const PluginName = "age_verification"

// DefaultVerificationMethod is recorded when an age.verified event does
// not name the method used.
const DefaultVerificationMethod = "MANUAL_CHECK"

// Plugin drives the per-basket verification state machine:
// no restriction -> pending verification -> verified, with cancellation
// and cleanup on successful payment.
type Plugin struct {
	store *Store
	repo  domain.Repository
	bus   domain.EventBus
}

// NewPlugin creates the age verification plugin.
func NewPlugin(store *Store, repo domain.Repository, bus domain.EventBus) *Plugin {
	return &Plugin{
		store: store,
		repo:  repo,
		bus:   bus,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Interested() []domain.Kind {
	return []domain.Kind{
		domain.KindBasketStarted,
		domain.KindItemAdded,
		domain.KindItemRemoved,
		domain.KindAgeVerified,
		domain.KindAgeVerificationCancelled,
		domain.KindAgeVerificationCompleted,
		domain.KindPaymentInitiated,
		domain.KindPaymentCompleted,
	}
}

func (p *Plugin) Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error {
	basketID := e.BasketID()
	if basketID == "" {
		slog.Warn("age verification event without basket_id", "kind", kind)
		return nil
	}

	switch kind {
	case domain.KindBasketStarted:
		p.store.Create(basketID)
	case domain.KindItemAdded:
		p.handleItemAdded(ctx, e, basketID)
	case domain.KindItemRemoved:
		p.store.RemoveRestrictedItem(basketID, e.String(domain.AttrProductID))
	case domain.KindAgeVerified:
		p.handleAgeVerified(ctx, e, basketID)
	case domain.KindAgeVerificationCancelled:
		p.store.Clear(basketID)
		p.publishFailed(ctx, basketID, e.EmployeeID(), domain.ReasonVerificationCancelled)
	case domain.KindAgeVerificationCompleted:
		p.materializeVerifiedItems(ctx, basketID)
	case domain.KindPaymentInitiated:
		p.handlePaymentInitiated(ctx, e, basketID)
	case domain.KindPaymentCompleted:
		p.store.Clear(basketID)
	}
	return nil
}

// handleItemAdded resolves the item against the catalog and, when it is
// age restricted, records it and announces the verification requirement.
// A missing product or flag simply skips restriction checking.
func (p *Plugin) handleItemAdded(ctx context.Context, e *domain.Event, basketID string) {
	productID := e.String(domain.AttrProductID)
	if productID == "" || !e.Bool("age_restricted") {
		return
	}

	product, err := p.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("restricted item not in catalog", "product_id", productID, "basket_id", basketID)
		} else {
			slog.Error("catalog lookup failed", "product_id", productID, "error", err)
		}
		return
	}
	if !product.AgeRestricted {
		return
	}

	quantity := e.Int(domain.AttrQuantity)
	if quantity <= 0 {
		quantity = 1
	}
	price := e.Float(domain.AttrPrice)
	if price == 0 {
		price = product.Price
	}

	items := p.store.AddRestrictedItem(basketID, domain.RestrictedItem{
		ProductID:  product.ProductID,
		Name:       product.Name,
		MinimumAge: product.MinimumAge,
		Category:   product.Category,
		Quantity:   quantity,
		Price:      price,
	})

	p.publish(ctx, domain.KindAgeVerificationRequired, map[string]any{
		domain.AttrBasketID: basketID,
		"restricted_items":  items,
		"minimum_age":       maxMinimumAge(items),
	})
}

// handleAgeVerified applies the pass/fail boundary: the customer's age
// must meet the maximum minimum age across pending restricted items.
// Completion is only recorded on pass.
func (p *Plugin) handleAgeVerified(ctx context.Context, e *domain.Event, basketID string) {
	state, ok := p.store.Get(basketID)
	if !ok {
		slog.Warn("age.verified for basket with no tracked state", "basket_id", basketID)
		return
	}
	if len(state.RestrictedItems) == 0 {
		slog.Warn("age.verified with no restricted items", "basket_id", basketID)
		return
	}

	verifierID := e.String("verifier_employee_id")
	customerAge := e.Int("customer_age")
	method := e.String("verification_method")
	if method == "" {
		method = DefaultVerificationMethod
	}

	required := maxMinimumAge(state.RestrictedItems)
	if customerAge < required {
		slog.Warn("age verification failed",
			"basket_id", basketID,
			"customer_age", customerAge,
			"required_age", required,
		)
		p.publishFailed(ctx, basketID, verifierID, domain.ReasonInsufficientAge)
		return
	}

	p.store.CompleteVerification(basketID, verifierID, customerAge, method)

	p.publish(ctx, domain.KindAgeVerificationCompleted, map[string]any{
		domain.AttrBasketID:   basketID,
		"customer_age":        customerAge,
		"verification_method": method,
		"verifier_id":         verifierID,
	})
}

// handlePaymentInitiated is the enforcement point: an unmet verification
// requirement yields one violation record and a failed event. It is
// advisory; payment completion is driven by a separate mutation path.
func (p *Plugin) handlePaymentInitiated(ctx context.Context, e *domain.Event, basketID string) {
	required, completed := p.store.RequiresVerification(basketID)
	if !required || completed {
		return
	}

	violation := &domain.AgeViolation{
		ViolationID:   uuid.New().String(),
		BasketID:      basketID,
		EmployeeID:    e.EmployeeID(),
		TerminalID:    e.TerminalID(),
		ViolationType: domain.ReasonUnverifiedItems,
		Details: map[string]any{
			"reason": "payment attempted with unverified age-restricted items",
		},
		Timestamp: time.Now(),
	}
	if err := p.repo.SaveAgeViolation(ctx, violation); err != nil {
		slog.Error("failed to record age violation", "basket_id", basketID, "error", err)
	}

	slog.Warn("payment attempted with unverified restricted items",
		"basket_id", basketID,
		"employee_id", e.EmployeeID(),
	)
	p.publishFailed(ctx, basketID, e.EmployeeID(), domain.ReasonUnverifiedItems)
}

// materializeVerifiedItems commits the pending restricted items to the
// basket once verification has completed, emitting one verified.item.added
// per item.
func (p *Plugin) materializeVerifiedItems(ctx context.Context, basketID string) {
	state, ok := p.store.Get(basketID)
	if !ok || len(state.RestrictedItems) == 0 {
		slog.Warn("no restricted items to materialize", "basket_id", basketID)
		return
	}

	for _, item := range state.RestrictedItems {
		record, err := p.repo.AppendBasketItem(ctx, basketID, &domain.BasketItem{
			ItemID:      uuid.New().String(),
			BasketID:    basketID,
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			Price:       item.Price,
			AddedAt:     time.Now(),
		})
		if err != nil {
			slog.Error("failed to append verified item",
				"basket_id", basketID,
				"product_id", item.ProductID,
				"error", err,
			)
			continue
		}

		p.publish(ctx, domain.KindVerifiedItemAdded, map[string]any{
			domain.AttrBasketID:  basketID,
			domain.AttrProductID: item.ProductID,
			"product_name":       item.Name,
			domain.AttrQuantity:  item.Quantity,
			domain.AttrPrice:     item.Price,
			"item_id":            record.ItemID,
		})
	}
}

func (p *Plugin) publishFailed(ctx context.Context, basketID, employeeID, reason string) {
	p.publish(ctx, domain.KindAgeVerificationFailed, map[string]any{
		domain.AttrBasketID:   basketID,
		domain.AttrEmployeeID: employeeID,
		"reason":              reason,
		"action_required":     "VERIFY_AGE_OR_REMOVE_ITEMS",
	})
}

func (p *Plugin) publish(ctx context.Context, kind domain.Kind, attrs map[string]any) {
	if p.bus == nil {
		return
	}
	data, err := domain.NewEvent(kind, attrs).Encode()
	if err == nil {
		err = p.bus.Publish(ctx, domain.TopicPOSEvents, data)
	}
	if err != nil {
		slog.Error("failed to publish event", "kind", kind, "error", err)
	}
}

func maxMinimumAge(items []domain.RestrictedItem) int {
	max := 0
	for _, it := range items {
		if it.MinimumAge > max {
			max = it.MinimumAge
		}
	}
	return max
}
