package lookup

import (
	"context"
	"log/slog"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

// PluginName matches the customer lookup plugin's configuration row.
const PluginName = "customer_lookup"

// DefaultCacheTTL bounds how long a cached customer record is served
// without consulting the external system.
const DefaultCacheTTL = time.Hour

// Plugin resolves customer identifiers presented at basket start: cache
// first, then the external customer API, persisting what it learns and
// associating the customer to the basket.
type Plugin struct {
	client   *Client
	cache    domain.Cache
	repo     domain.Repository
	bus      domain.EventBus
	cacheTTL time.Duration
	now      func() time.Time
}

// NewPlugin creates the customer lookup plugin. cacheTTL <= 0 selects
// the default.
func NewPlugin(client *Client, cache domain.Cache, repo domain.Repository, bus domain.EventBus, cacheTTL time.Duration) *Plugin {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Plugin{
		client:   client,
		cache:    cache,
		repo:     repo,
		bus:      bus,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Interested() []domain.Kind {
	return []domain.Kind{domain.KindBasketStarted}
}

func (p *Plugin) Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error {
	if kind != domain.KindBasketStarted {
		return nil
	}
	identifier := e.String("customer_identifier")
	if identifier == "" {
		return nil
	}
	basketID := e.BasketID()
	start := p.now()

	customer, err := p.cachedCustomer(ctx, identifier)
	if err != nil {
		slog.Warn("customer cache read failed", "identifier", identifier, "error", err)
	}
	if customer != nil {
		slog.Info("customer lookup cache hit", "identifier", identifier, "basket_id", basketID)
		p.logLookup(ctx, basketID, identifier, "SUCCESS", "", start)
	} else {
		customer = p.fetch(ctx, basketID, identifier, start)
	}
	if customer == nil {
		slog.Warn("customer not found", "identifier", identifier, "basket_id", basketID)
		return nil
	}

	p.associate(ctx, basketID, customer)
	p.publishCustomerData(ctx, basketID, customer)
	return nil
}

// cachedCustomer returns a fresh cached record, or nil on miss.
func (p *Plugin) cachedCustomer(ctx context.Context, identifier string) (*domain.Customer, error) {
	if p.cache == nil {
		return nil, nil
	}
	c, err := p.cache.GetCustomer(ctx, identifier)
	if err != nil || c == nil {
		return nil, err
	}
	if p.now().Sub(c.UpdatedAt) >= p.cacheTTL {
		return nil, nil
	}
	return c, nil
}

// fetch calls the external API, persisting success. On transport errors
// it falls back to whatever the repository already knows about the
// identifier: stale data beats no data at the till.
func (p *Plugin) fetch(ctx context.Context, basketID, identifier string, start time.Time) *domain.Customer {
	customer, err := p.client.FetchCustomer(ctx, identifier)
	if err != nil {
		slog.Error("customer API fetch failed", "identifier", identifier, "error", err)
		p.logLookup(ctx, basketID, identifier, "FAILED", err.Error(), start)
		return p.fallback(ctx, identifier)
	}
	if customer == nil {
		p.logLookup(ctx, basketID, identifier, "FAILED", "customer not found", start)
		return nil
	}

	if p.repo != nil {
		if err := p.repo.SaveCustomer(ctx, customer); err != nil {
			slog.Error("failed to save customer", "customer_id", customer.CustomerID, "error", err)
		}
	}
	if p.cache != nil {
		if err := p.cache.SetCustomer(ctx, identifier, customer, p.cacheTTL); err != nil {
			slog.Warn("customer cache write failed", "identifier", identifier, "error", err)
		}
	}
	p.logLookup(ctx, basketID, identifier, "SUCCESS", "", start)
	return customer
}

func (p *Plugin) fallback(ctx context.Context, identifier string) *domain.Customer {
	if p.repo == nil {
		return nil
	}
	c, err := p.repo.GetCustomerByIdentifier(ctx, identifier)
	if err != nil {
		return nil
	}
	slog.Info("serving customer from repository fallback", "identifier", identifier)
	return c
}

func (p *Plugin) associate(ctx context.Context, basketID string, c *domain.Customer) {
	if p.repo == nil || basketID == "" {
		return
	}
	if err := p.repo.SetBasketCustomer(ctx, basketID, c.CustomerID); err != nil {
		slog.Error("failed to associate customer with basket",
			"basket_id", basketID, "customer_id", c.CustomerID, "error", err)
	}
}

func (p *Plugin) logLookup(ctx context.Context, basketID, identifier, status, errMsg string, start time.Time) {
	if p.repo == nil {
		return
	}
	entry := &domain.CustomerLookupLog{
		BasketID:   basketID,
		Identifier: identifier,
		Status:     status,
		Error:      errMsg,
		DurationMs: p.now().Sub(start).Milliseconds(),
		Timestamp:  p.now(),
	}
	if err := p.repo.LogCustomerLookup(ctx, entry); err != nil {
		slog.Error("failed to record customer lookup", "identifier", identifier, "error", err)
	}
}

func (p *Plugin) publishCustomerData(ctx context.Context, basketID string, c *domain.Customer) {
	if p.bus == nil {
		return
	}
	data, err := domain.NewEvent(domain.KindCustomerDataFetched, map[string]any{
		domain.AttrBasketID: basketID,
		"customer_id":       c.CustomerID,
		"identifier":        c.Identifier,
		"first_name":        c.FirstName,
		"last_name":         c.LastName,
	}).Encode()
	if err == nil {
		err = p.bus.Publish(ctx, domain.TopicPOSEvents, data)
	}
	if err != nil {
		slog.Error("failed to publish event", "kind", domain.KindCustomerDataFetched, "error", err)
	}
}
