package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

type fakeRepo struct {
	domain.Repository
	rules    map[string][]*domain.RecommendationRule
	rulesErr error
	saved    []*domain.Recommendation
	saveErr  error
}

func (f *fakeRepo) ListRecommendationRules(ctx context.Context, sourceProductID string) ([]*domain.RecommendationRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return f.rules[sourceProductID], nil
}

func (f *fakeRepo) SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

type fakeSink struct {
	groups   []string
	payloads []map[string]any
}

func (f *fakeSink) PushToGroup(ctx context.Context, group string, payload map[string]any) error {
	f.groups = append(f.groups, group)
	f.payloads = append(f.payloads, payload)
	return nil
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

func itemAdded(basketID, productID string) *domain.Event {
	return &domain.Event{
		Kind: domain.KindItemAdded,
		Attributes: map[string]any{
			domain.AttrBasketID:  basketID,
			domain.AttrProductID: productID,
		},
		EmittedAt: time.Now().UTC(),
	}
}

func TestDatabaseRulesPreferred(t *testing.T) {
	repo := &fakeRepo{rules: map[string][]*domain.RecommendationRule{
		"BURGER": {
			{SourceProductID: "BURGER", RecommendedProductID: "SHAKE", RecommendedName: "Milkshake", RecommendedPrice: 4.49, Active: true},
		},
	}}
	sink := &fakeSink{}
	bus := &captureBus{}
	p := NewPlugin(repo, sink, bus)

	e := itemAdded("B1", "BURGER")
	if err := p.Handle(context.Background(), e.Kind, e); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d recommendations, want 1", len(repo.saved))
	}
	rec := repo.saved[0]
	if rec.RecommendedProductID != "SHAKE" {
		t.Errorf("recommended %s, want SHAKE (database rule, not builtin)", rec.RecommendedProductID)
	}
	if rec.Status != "PENDING" {
		t.Errorf("Status = %s, want PENDING", rec.Status)
	}
	if rec.Reason != "Frequently bought together" {
		t.Errorf("Reason = %s", rec.Reason)
	}

	if len(sink.groups) != 1 || sink.groups[0] != domain.RecommendationGroup("B1") {
		t.Errorf("sink groups = %v", sink.groups)
	}
	if len(bus.events) != 1 || bus.events[0].Kind != domain.KindRecommendationSuggested {
		t.Errorf("published events = %+v", bus.events)
	}
}

func TestBuiltinFallback(t *testing.T) {
	t.Run("no database rules", func(t *testing.T) {
		repo := &fakeRepo{}
		sink := &fakeSink{}
		p := NewPlugin(repo, sink, nil)

		e := itemAdded("B1", "COFFEE")
		if err := p.Handle(context.Background(), e.Kind, e); err != nil {
			t.Fatalf("Handle failed: %v", err)
		}

		if len(repo.saved) != 2 {
			t.Fatalf("saved %d recommendations, want 2 builtin pairs", len(repo.saved))
		}
		if repo.saved[0].RecommendedProductID != "DONUT" {
			t.Errorf("first recommendation = %s, want DONUT", repo.saved[0].RecommendedProductID)
		}
	})

	t.Run("rule lookup error", func(t *testing.T) {
		repo := &fakeRepo{rulesErr: errors.New("db down")}
		sink := &fakeSink{}
		p := NewPlugin(repo, sink, nil)

		e := itemAdded("B1", "PIZZA")
		if err := p.Handle(context.Background(), e.Kind, e); err != nil {
			t.Fatalf("Handle failed: %v", err)
		}

		if len(repo.saved) != 2 {
			t.Errorf("saved %d recommendations, want 2 (builtin fallback on error)", len(repo.saved))
		}
	})
}

func TestUnknownProductNoSuggestions(t *testing.T) {
	repo := &fakeRepo{}
	sink := &fakeSink{}
	p := NewPlugin(repo, sink, nil)

	e := itemAdded("B1", "OBSCURE_SKU")
	if err := p.Handle(context.Background(), e.Kind, e); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(repo.saved) != 0 || len(sink.groups) != 0 {
		t.Error("suggestions produced for product with no pairings")
	}
}

func TestSaveFailureSuppressesPush(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("disk full")}
	sink := &fakeSink{}
	bus := &captureBus{}
	p := NewPlugin(repo, sink, bus)

	e := itemAdded("B1", "BURGER")
	if err := p.Handle(context.Background(), e.Kind, e); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(sink.groups) != 0 {
		t.Error("pushed recommendations that were never persisted")
	}
	if len(bus.events) != 0 {
		t.Error("published recommendation event with nothing persisted")
	}
}

func TestMissingKeysIgnored(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo, &fakeSink{}, nil)

	e := &domain.Event{
		Kind:       domain.KindItemAdded,
		Attributes: map[string]any{domain.AttrProductID: "BURGER"},
		EmittedAt:  time.Now().UTC(),
	}
	if err := p.Handle(context.Background(), e.Kind, e); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(repo.saved) != 0 {
		t.Error("recommendations saved without basket_id")
	}
}
