// Package stripe is a minimal client for the provider's events API: retrieve
// by ID and filtered listing with cursor pagination. Only the surface the
// sync pipeline needs is implemented.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"billsync/internal/config"
)

const pageLimit = 100

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.StripeConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.APIBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS)+1),
	}
}

// EventFilter narrows a listing. Zero value lists everything the provider
// still retains (roughly a 30 day window; older events are simply absent).
type EventFilter struct {
	// DeliverySuccess, when set, filters on the provider's delivery-success
	// flag. false lists only events whose webhooks failed.
	DeliverySuccess *bool
	// Type filters on the dot-namespaced event type. A trailing * wildcard
	// segment is allowed, e.g. "invoice.*".
	Type string
}

// RetrieveEvent fetches a single event by ID. account scopes the request to a
// connected account; empty means the default account.
func (c *Client) RetrieveEvent(ctx context.Context, id, account string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/v1/events/"+url.PathEscape(id), nil, account, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListEvents returns a single-pass iterator over matching events. Pages are
// fetched lazily; the iterator must not be reused after exhaustion.
func (c *Client) ListEvents(ctx context.Context, f EventFilter, account string) *EventIterator {
	return &EventIterator{client: c, filter: f, account: account}
}

// EventIterator walks a cursor-paginated event listing. Usage follows the
// database/sql rows idiom:
//
//	for it.Next(ctx) { use(it.Event()) }
//	if err := it.Err(); err != nil { ... }
type EventIterator struct {
	client  *Client
	filter  EventFilter
	account string

	page    []json.RawMessage
	pos     int
	lastID  string
	hasMore bool
	started bool
	err     error
}

func (it *EventIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.page) {
		it.pos++
		return true
	}
	if it.started && !it.hasMore {
		return false
	}
	if err := it.fetchPage(ctx); err != nil {
		it.err = err
		return false
	}
	if len(it.page) == 0 {
		return false
	}
	it.pos = 1
	return true
}

// Event returns the raw payload positioned by the last successful Next.
func (it *EventIterator) Event() json.RawMessage {
	return it.page[it.pos-1]
}

func (it *EventIterator) Err() error { return it.err }

func (it *EventIterator) fetchPage(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	if it.filter.DeliverySuccess != nil {
		q.Set("delivery_success", strconv.FormatBool(*it.filter.DeliverySuccess))
	}
	if it.filter.Type != "" {
		q.Set("type", it.filter.Type)
	}
	if it.lastID != "" {
		q.Set("starting_after", it.lastID)
	}
	var body struct {
		Data    []json.RawMessage `json:"data"`
		HasMore bool              `json:"has_more"`
	}
	if err := it.client.get(ctx, "/v1/events", q, it.account, &body); err != nil {
		return err
	}
	it.started = true
	it.page = body.Data
	it.pos = 0
	it.hasMore = body.HasMore
	if n := len(body.Data); n > 0 {
		var last struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body.Data[n-1], &last); err != nil {
			return fmt.Errorf("decode event page: %w", err)
		}
		it.lastID = last.ID
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, account string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if account != "" {
		req.Header.Set("Stripe-Account", account)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
