package ageverify

import (
	"context"
	"testing"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/repository"
)

type fakeRepo struct {
	domain.Repository
	products   map[string]*domain.Product
	violations []*domain.AgeViolation
	appended   []*domain.BasketItem
}

func (f *fakeRepo) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) SaveAgeViolation(ctx context.Context, v *domain.AgeViolation) error {
	f.violations = append(f.violations, v)
	return nil
}

func (f *fakeRepo) AppendBasketItem(ctx context.Context, basketID string, item *domain.BasketItem) (*domain.BasketItem, error) {
	f.appended = append(f.appended, item)
	return item, nil
}

type captureBus struct {
	domain.EventBus
	events []*domain.Event
}

func (b *captureBus) Publish(ctx context.Context, topic string, payload []byte) error {
	e, err := domain.DecodeEvent(payload)
	if err != nil {
		return err
	}
	b.events = append(b.events, e)
	return nil
}

func (b *captureBus) lastKind() domain.Kind {
	if len(b.events) == 0 {
		return ""
	}
	return b.events[len(b.events)-1].Kind
}

func newTestPlugin() (*Plugin, *Store, *fakeRepo, *captureBus) {
	store := NewStore(domain.DispatchConfig{})
	repo := &fakeRepo{products: map[string]*domain.Product{
		"BEER":  {ProductID: "BEER", Name: "Beer 6-Pack", Price: 12.99, AgeRestricted: true, MinimumAge: 21},
		"MILK":  {ProductID: "MILK", Name: "Milk", Price: 3.49},
		"SMOKE": {ProductID: "SMOKE", Name: "Cigarettes", Price: 9.99, AgeRestricted: true, MinimumAge: 18},
	}}
	bus := &captureBus{}
	return NewPlugin(store, repo, bus), store, repo, bus
}

func handle(t *testing.T, p *Plugin, kind domain.Kind, attrs map[string]any) {
	t.Helper()
	e := &domain.Event{Kind: kind, Attributes: attrs, EmittedAt: time.Now().UTC()}
	if err := p.Handle(context.Background(), kind, e); err != nil {
		t.Fatalf("Handle(%s) failed: %v", kind, err)
	}
}

func TestRestrictedItemTriggersVerificationRequired(t *testing.T) {
	p, store, _, bus := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
	})

	required, completed := store.RequiresVerification("B1")
	if !required || completed {
		t.Errorf("RequiresVerification = (%v, %v), want (true, false)", required, completed)
	}
	if bus.lastKind() != domain.KindAgeVerificationRequired {
		t.Errorf("last published kind = %s, want %s", bus.lastKind(), domain.KindAgeVerificationRequired)
	}
	if age := bus.events[len(bus.events)-1].Int("minimum_age"); age != 21 {
		t.Errorf("minimum_age = %d, want 21", age)
	}
}

func TestUnrestrictedItemIgnored(t *testing.T) {
	p, store, _, bus := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "MILK",
	})

	if required, _ := store.RequiresVerification("B1"); required {
		t.Error("unrestricted item marked verification required")
	}
	if len(bus.events) != 0 {
		t.Errorf("published %d events, want 0", len(bus.events))
	}
}

func TestAgeVerifiedPassAndFail(t *testing.T) {
	t.Run("sufficient age completes verification", func(t *testing.T) {
		p, store, _, bus := newTestPlugin()
		handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
		handle(t, p, domain.KindItemAdded, map[string]any{
			domain.AttrBasketID:  "B1",
			domain.AttrProductID: "BEER",
			"age_restricted":     true,
		})

		handle(t, p, domain.KindAgeVerified, map[string]any{
			domain.AttrBasketID:    "B1",
			"verifier_employee_id": "E1",
			"customer_age":         21,
		})

		state, _ := store.Get("B1")
		if !state.VerificationCompleted {
			t.Error("verification not completed for age 21 against minimum 21")
		}
		if state.VerificationMethod != DefaultVerificationMethod {
			t.Errorf("VerificationMethod = %s, want %s", state.VerificationMethod, DefaultVerificationMethod)
		}
		if bus.lastKind() != domain.KindAgeVerificationCompleted {
			t.Errorf("last published kind = %s, want %s", bus.lastKind(), domain.KindAgeVerificationCompleted)
		}
	})

	t.Run("insufficient age fails verification", func(t *testing.T) {
		p, store, _, bus := newTestPlugin()
		handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
		handle(t, p, domain.KindItemAdded, map[string]any{
			domain.AttrBasketID:  "B1",
			domain.AttrProductID: "BEER",
			"age_restricted":     true,
		})

		handle(t, p, domain.KindAgeVerified, map[string]any{
			domain.AttrBasketID: "B1",
			"customer_age":      20,
		})

		state, _ := store.Get("B1")
		if state.VerificationCompleted {
			t.Error("verification completed for age 20 against minimum 21")
		}
		last := bus.events[len(bus.events)-1]
		if last.Kind != domain.KindAgeVerificationFailed {
			t.Fatalf("last published kind = %s, want %s", last.Kind, domain.KindAgeVerificationFailed)
		}
		if reason := last.String("reason"); reason != domain.ReasonInsufficientAge {
			t.Errorf("reason = %s, want %s", reason, domain.ReasonInsufficientAge)
		}
	})

	t.Run("highest minimum age governs", func(t *testing.T) {
		p, store, _, _ := newTestPlugin()
		handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
		handle(t, p, domain.KindItemAdded, map[string]any{
			domain.AttrBasketID:  "B1",
			domain.AttrProductID: "SMOKE",
			"age_restricted":     true,
		})
		handle(t, p, domain.KindItemAdded, map[string]any{
			domain.AttrBasketID:  "B1",
			domain.AttrProductID: "BEER",
			"age_restricted":     true,
		})

		// 19 clears cigarettes (18) but not beer (21).
		handle(t, p, domain.KindAgeVerified, map[string]any{
			domain.AttrBasketID: "B1",
			"customer_age":      19,
		})

		state, _ := store.Get("B1")
		if state.VerificationCompleted {
			t.Error("verification completed below the highest minimum age in the basket")
		}
	})
}

func TestPaymentInitiatedWithUnverifiedItems(t *testing.T) {
	p, _, repo, bus := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
	})

	handle(t, p, domain.KindPaymentInitiated, map[string]any{
		domain.AttrBasketID:   "B1",
		domain.AttrEmployeeID: "E1",
	})

	if len(repo.violations) != 1 {
		t.Fatalf("recorded %d violations, want 1", len(repo.violations))
	}
	v := repo.violations[0]
	if v.ViolationType != domain.ReasonUnverifiedItems {
		t.Errorf("ViolationType = %s, want %s", v.ViolationType, domain.ReasonUnverifiedItems)
	}
	if v.BasketID != "B1" || v.EmployeeID != "E1" {
		t.Errorf("violation keys = %s/%s", v.BasketID, v.EmployeeID)
	}
	if bus.lastKind() != domain.KindAgeVerificationFailed {
		t.Errorf("last published kind = %s, want %s", bus.lastKind(), domain.KindAgeVerificationFailed)
	}
}

func TestPaymentInitiatedAfterVerification(t *testing.T) {
	p, _, repo, _ := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
	})
	handle(t, p, domain.KindAgeVerified, map[string]any{
		domain.AttrBasketID: "B1",
		"customer_age":      30,
	})

	handle(t, p, domain.KindPaymentInitiated, map[string]any{
		domain.AttrBasketID: "B1",
	})

	if len(repo.violations) != 0 {
		t.Errorf("recorded %d violations after completed verification, want 0", len(repo.violations))
	}
}

func TestVerificationCancelledClearsState(t *testing.T) {
	p, store, _, bus := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
	})

	handle(t, p, domain.KindAgeVerificationCancelled, map[string]any{
		domain.AttrBasketID: "B1",
	})

	if _, ok := store.Get("B1"); ok {
		t.Error("state survived cancellation")
	}
	last := bus.events[len(bus.events)-1]
	if last.Kind != domain.KindAgeVerificationFailed || last.String("reason") != domain.ReasonVerificationCancelled {
		t.Errorf("published %s/%s, want failed/%s", last.Kind, last.String("reason"), domain.ReasonVerificationCancelled)
	}
}

func TestPaymentCompletedClearsState(t *testing.T) {
	p, store, _, _ := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
	})

	handle(t, p, domain.KindPaymentCompleted, map[string]any{
		domain.AttrBasketID: "B1",
	})

	if _, ok := store.Get("B1"); ok {
		t.Error("state survived payment completion")
	}
}

func TestVerificationCompletedMaterializesItems(t *testing.T) {
	p, _, repo, bus := newTestPlugin()

	handle(t, p, domain.KindBasketStarted, map[string]any{domain.AttrBasketID: "B1"})
	handle(t, p, domain.KindItemAdded, map[string]any{
		domain.AttrBasketID:  "B1",
		domain.AttrProductID: "BEER",
		"age_restricted":     true,
		domain.AttrQuantity:  2,
	})

	handle(t, p, domain.KindAgeVerificationCompleted, map[string]any{
		domain.AttrBasketID: "B1",
	})

	if len(repo.appended) != 1 {
		t.Fatalf("appended %d basket items, want 1", len(repo.appended))
	}
	item := repo.appended[0]
	if item.ProductID != "BEER" || item.Quantity != 2 {
		t.Errorf("appended item = %s x%d, want BEER x2", item.ProductID, item.Quantity)
	}
	if item.Price != 12.99 {
		t.Errorf("appended price = %v, want catalog price 12.99", item.Price)
	}
	if bus.lastKind() != domain.KindVerifiedItemAdded {
		t.Errorf("last published kind = %s, want %s", bus.lastKind(), domain.KindVerifiedItemAdded)
	}
}
