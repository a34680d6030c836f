// Package boond provides an HTTP client for the Boond CRM API, satisfying
// resolver.CRMClient. Boond is the authoritative side of every comparison:
// this client only reads, never writes.
package boond

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/invoiceops/reconcile-go/internal/domain"
	"github.com/invoiceops/reconcile-go/internal/ratelimit"
	"github.com/invoiceops/reconcile-go/internal/resolver"
)

// Client queries the Boond CRM API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	limiter    *ratelimit.EndpointLimiter
	budget     *ratelimit.LookupBudget
	projectRef string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter attaches a per-endpoint rate limiter.
func WithLimiter(l *ratelimit.EndpointLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBudget attaches a per-project lookup budget. Budgets are keyed by
// the project reference passed to ForProject.
func WithBudget(b *ratelimit.LookupBudget) Option {
	return func(c *Client) { c.budget = b }
}

// New creates a Boond client for the given endpoint and API token.
func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForProject returns a copy of the client whose budget accounting is keyed
// to the given project reference. The underlying HTTP client is shared.
func (c *Client) ForProject(projectRef string) *Client {
	scoped := *c
	scoped.projectRef = projectRef
	return &scoped
}

// ResolveEntity maps a client-side external reference to Boond's internal
// resource ID.
func (c *Client) ResolveEntity(ctx context.Context, externalRef string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.get(ctx, ratelimit.EndpointEntities, "/api/resources/search",
		url.Values{"ref": {externalRef}}, externalRef, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &resolver.NotFoundError{Ref: externalRef}
	}
	return out.ID, nil
}

// Delivery finds the delivery (mission) binding the resource to the project.
func (c *Client) Delivery(ctx context.Context, internalID, projectRef string) (string, error) {
	var out struct {
		DeliveryID string `json:"delivery_id"`
	}
	err := c.get(ctx, ratelimit.EndpointDeliveries,
		fmt.Sprintf("/api/resources/%s/deliveries", url.PathEscape(internalID)),
		url.Values{"project": {projectRef}}, internalID, &out)
	if err != nil {
		return "", err
	}
	if out.DeliveryID == "" {
		return "", &resolver.NotFoundError{Ref: internalID}
	}
	return out.DeliveryID, nil
}

// TimeEntries fetches the validated timesheet rows for the delivery within
// the period.
func (c *Client) TimeEntries(ctx context.Context, internalID, deliveryID string, period domain.Period) ([]resolver.TimeEntry, error) {
	var out struct {
		Entries []struct {
			Date string  `json:"date"`
			Days float64 `json:"days"`
		} `json:"entries"`
	}
	err := c.get(ctx, ratelimit.EndpointTimes,
		fmt.Sprintf("/api/deliveries/%s/times", url.PathEscape(deliveryID)),
		url.Values{"start": {period.Start}, "end": {period.End}}, deliveryID, &out)
	if err != nil {
		return nil, err
	}
	entries := make([]resolver.TimeEntry, 0, len(out.Entries))
	for _, e := range out.Entries {
		entries = append(entries, resolver.TimeEntry{Date: e.Date, Days: e.Days})
	}
	return entries, nil
}

// Rate fetches the contractual daily rate on the delivery.
func (c *Client) Rate(ctx context.Context, internalID, deliveryID string) (float64, error) {
	var out struct {
		DailyRate float64 `json:"daily_rate"`
	}
	err := c.get(ctx, ratelimit.EndpointRates,
		fmt.Sprintf("/api/deliveries/%s/rate", url.PathEscape(deliveryID)),
		nil, deliveryID, &out)
	if err != nil {
		return 0, err
	}
	return out.DailyRate, nil
}

// get performs a rate-limited, budget-checked GET and decodes the JSON body.
// The ref is only used to label not-found errors.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, ref string, out any) error {
	if c.budget != nil && c.projectRef != "" {
		if err := c.budget.Check(c.projectRef, endpoint); err != nil {
			return &resolver.TransientError{Op: endpoint, Err: err}
		}
		c.budget.Record(c.projectRef, endpoint)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return &resolver.TransientError{Op: endpoint, Err: err}
		}
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return &resolver.MalformedError{Op: endpoint, Err: fmt.Errorf("boond: invalid endpoint: %w", err)}
	}
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &resolver.MalformedError{Op: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network faults and timeouts are worth retrying.
		return &resolver.TransientError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return &resolver.NotFoundError{Ref: ref}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &resolver.TransientError{Op: endpoint, Err: fmt.Errorf("boond: status %d", resp.StatusCode)}
	default:
		return &resolver.MalformedError{Op: endpoint, Err: fmt.Errorf("boond: unexpected status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &resolver.MalformedError{Op: endpoint, Err: fmt.Errorf("boond: decode response: %w", err)}
	}
	return nil
}
