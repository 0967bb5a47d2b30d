// Package lookup fetches customer data from the external customer system
// and caches it locally.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

// Client calls the external customer API with a bounded timeout and retry
// budget so a slow upstream cannot stall the dispatch loop indefinitely.
type Client struct {
	baseURL       string
	retryAttempts int
	http          *http.Client
}

// NewClient creates a customer API client.
func NewClient(baseURL string, timeout time.Duration, retryAttempts int) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retryAttempts <= 0 {
		retryAttempts = 2
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		retryAttempts: retryAttempts,
		http:          &http.Client{Timeout: timeout},
	}
}

// customerPayload is the external system's response shape.
type customerPayload struct {
	CustomerID string `json:"customer_id"`
	Identifier string `json:"identifier"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// FetchCustomer retrieves a customer by identifier. A 404 returns
// (nil, nil): a missing customer is normal control flow, not an error.
func (c *Client) FetchCustomer(ctx context.Context, identifier string) (*domain.Customer, error) {
	url := c.baseURL + "/" + identifier

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		customer, retriable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return customer, nil
		}
		lastErr = err
		if !retriable {
			break
		}
		slog.Warn("customer lookup attempt failed",
			"identifier", identifier,
			"attempt", attempt,
			"max_attempts", c.retryAttempts,
			"error", err,
		)
	}
	return nil, fmt.Errorf("fetch customer %s: %w", identifier, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*domain.Customer, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload customerPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, false, fmt.Errorf("decode response: %w", err)
		}
		return &domain.Customer{
			CustomerID: payload.CustomerID,
			Identifier: payload.Identifier,
			FirstName:  payload.FirstName,
			LastName:   payload.LastName,
			Email:      payload.Email,
			Phone:      payload.Phone,
			UpdatedAt:  time.Now(),
		}, false, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
