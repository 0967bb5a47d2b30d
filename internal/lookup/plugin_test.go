package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/repository"
)

type fakeRepo struct {
	domain.Repository
	customers    map[string]*domain.Customer
	saved        []*domain.Customer
	associations map[string]string
	lookupLogs   []*domain.CustomerLookupLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers:    make(map[string]*domain.Customer),
		associations: make(map[string]string),
	}
}

func (f *fakeRepo) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	f.saved = append(f.saved, c)
	f.customers[c.Identifier] = c
	return nil
}

func (f *fakeRepo) GetCustomerByIdentifier(ctx context.Context, identifier string) (*domain.Customer, error) {
	c, ok := f.customers[identifier]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) SetBasketCustomer(ctx context.Context, basketID, customerID string) error {
	f.associations[basketID] = customerID
	return nil
}

func (f *fakeRepo) LogCustomerLookup(ctx context.Context, l *domain.CustomerLookupLog) error {
	f.lookupLogs = append(f.lookupLogs, l)
	return nil
}

type fakeCache struct {
	domain.Cache
	customers map[string]*domain.Customer
	sets      int
}

func newFakeCache() *fakeCache {
	return &fakeCache{customers: make(map[string]*domain.Customer)}
}

func (f *fakeCache) GetCustomer(ctx context.Context, identifier string) (*domain.Customer, error) {
	return f.customers[identifier], nil
}

func (f *fakeCache) SetCustomer(ctx context.Context, identifier string, c *domain.Customer, ttl time.Duration) error {
	f.customers[identifier] = c
	f.sets++
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

func basketStarted(identifier string) *domain.Event {
	return &domain.Event{
		Kind: domain.KindBasketStarted,
		Attributes: map[string]any{
			domain.AttrBasketID:   "B1",
			"customer_identifier": identifier,
		},
		EmittedAt: time.Now().UTC(),
	}
}

func customerServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"customer_id": "C-001", "identifier": "loyalty-42", "first_name": "Dana"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupFetchesAndAssociates(t *testing.T) {
	var calls atomic.Int32
	srv := customerServer(t, &calls)

	repo := newFakeRepo()
	cache := newFakeCache()
	bus := &captureBus{}
	p := NewPlugin(NewClient(srv.URL, time.Second, 2), cache, repo, bus, time.Hour)

	if err := p.Handle(context.Background(), domain.KindBasketStarted, basketStarted("loyalty-42")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("API called %d times, want 1", calls.Load())
	}
	if len(repo.saved) != 1 || repo.saved[0].CustomerID != "C-001" {
		t.Errorf("saved customers = %+v", repo.saved)
	}
	if cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", cache.sets)
	}
	if repo.associations["B1"] != "C-001" {
		t.Errorf("basket association = %s, want C-001", repo.associations["B1"])
	}
	if len(repo.lookupLogs) != 1 || repo.lookupLogs[0].Status != "SUCCESS" {
		t.Errorf("lookup logs = %+v", repo.lookupLogs)
	}
	if len(bus.events) != 1 || bus.events[0].Kind != domain.KindCustomerDataFetched {
		t.Fatalf("published events = %+v", bus.events)
	}
	if bus.events[0].String("first_name") != "Dana" {
		t.Errorf("published first_name = %s, want Dana", bus.events[0].String("first_name"))
	}
}

func TestLookupCacheHitSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := customerServer(t, &calls)

	repo := newFakeRepo()
	cache := newFakeCache()
	cache.customers["loyalty-42"] = &domain.Customer{
		CustomerID: "C-001",
		Identifier: "loyalty-42",
		UpdatedAt:  time.Now(),
	}
	p := NewPlugin(NewClient(srv.URL, time.Second, 2), cache, repo, &captureBus{}, time.Hour)

	if err := p.Handle(context.Background(), domain.KindBasketStarted, basketStarted("loyalty-42")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("API called %d times on cache hit, want 0", calls.Load())
	}
	if repo.associations["B1"] != "C-001" {
		t.Error("cache hit did not associate customer with basket")
	}
}

func TestLookupStaleCacheRefetches(t *testing.T) {
	var calls atomic.Int32
	srv := customerServer(t, &calls)

	cache := newFakeCache()
	cache.customers["loyalty-42"] = &domain.Customer{
		CustomerID: "C-001",
		Identifier: "loyalty-42",
		UpdatedAt:  time.Now().Add(-2 * time.Hour),
	}
	p := NewPlugin(NewClient(srv.URL, time.Second, 2), cache, newFakeRepo(), &captureBus{}, time.Hour)

	if err := p.Handle(context.Background(), domain.KindBasketStarted, basketStarted("loyalty-42")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("API called %d times for stale entry, want 1", calls.Load())
	}
}

func TestLookupFallsBackToRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	repo.customers["loyalty-42"] = &domain.Customer{
		CustomerID: "C-001",
		Identifier: "loyalty-42",
		FirstName:  "Dana",
	}
	bus := &captureBus{}
	p := NewPlugin(NewClient(srv.URL, time.Second, 2), newFakeCache(), repo, bus, time.Hour)

	if err := p.Handle(context.Background(), domain.KindBasketStarted, basketStarted("loyalty-42")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if repo.associations["B1"] != "C-001" {
		t.Error("repository fallback did not associate customer")
	}
	if len(repo.lookupLogs) != 1 || repo.lookupLogs[0].Status != "FAILED" {
		t.Errorf("lookup logs = %+v, want one FAILED entry", repo.lookupLogs)
	}
	if len(bus.events) != 1 {
		t.Errorf("published %d events, want 1", len(bus.events))
	}
}

func TestLookupUnknownCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	bus := &captureBus{}
	p := NewPlugin(NewClient(srv.URL, time.Second, 2), newFakeCache(), repo, bus, time.Hour)

	if err := p.Handle(context.Background(), domain.KindBasketStarted, basketStarted("unknown")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(repo.associations) != 0 {
		t.Error("unknown customer was associated with basket")
	}
	if len(bus.events) != 0 {
		t.Errorf("published %d events for unknown customer, want 0", len(bus.events))
	}
	if len(repo.lookupLogs) != 1 || repo.lookupLogs[0].Status != "FAILED" {
		t.Errorf("lookup logs = %+v, want one FAILED entry", repo.lookupLogs)
	}
}

func TestLookupIgnoresEventsWithoutIdentifier(t *testing.T) {
	var calls atomic.Int32
	srv := customerServer(t, &calls)

	p := NewPlugin(NewClient(srv.URL, time.Second, 2), newFakeCache(), newFakeRepo(), &captureBus{}, time.Hour)

	e := &domain.Event{
		Kind:       domain.KindBasketStarted,
		Attributes: map[string]any{domain.AttrBasketID: "B1"},
		EmittedAt:  time.Now().UTC(),
	}
	if err := p.Handle(context.Background(), domain.KindBasketStarted, e); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("API called %d times without identifier, want 0", calls.Load())
	}
}
