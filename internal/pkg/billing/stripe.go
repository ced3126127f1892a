package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/metrics/counter"
)

const (
	defaultStripePageSize = 100
	defaultStripeTimeout  = 30 * time.Second
)

// ErrNotConfigured is returned when no Stripe secret key is available.
var ErrNotConfigured = errors.New("STRIPE_SECRET_KEY is not configured")

// StripeClient implements API on top of the Stripe SDK. It never touches the
// SDK's package-level key so several clients can coexist.
type StripeClient struct {
	PageSize int64

	api *client.API
}

func NewStripeClientFromEnv() (*StripeClient, error) {
	return NewStripeClient(
		strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", "")),
		int64(env.GetEnvInt("STRIPE_PAGE_SIZE", defaultStripePageSize)),
		env.GetEnvDuration("STRIPE_TIMEOUT", defaultStripeTimeout),
	)
}

// NewStripeClient builds a client. baseURL is empty in production and points
// at a stub server in tests.
func NewStripeClient(secretKey, baseURL string, pageSize int64, timeout time.Duration) (*StripeClient, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultStripePageSize
	}
	if timeout <= 0 {
		timeout = defaultStripeTimeout
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(baseURL, "/"))
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	return &StripeClient{
		PageSize: pageSize,
		api:      client.New(secretKey, backends),
	}, nil
}

func (c *StripeClient) ListSubscriptions(ctx context.Context, startingAfter string) (*SubscriptionPage, error) {
	params := &stripe.SubscriptionListParams{
		// The default listing omits canceled subscriptions.
		Status: stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(c.PageSize)
	params.Single = true
	if startingAfter != "" {
		params.StartingAfter = stripe.String(startingAfter)
	}
	params.AddExpand("data.items.data.price")

	it := c.api.Subscriptions.List(params)
	page := &SubscriptionPage{}
	for it.Next() {
		page.Subscriptions = append(page.Subscriptions, fromStripeSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (c *StripeClient) ListEvents(ctx context.Context, eventType string, start, end time.Time, startingAfter string) (*EventPage, error) {
	params := &stripe.EventListParams{
		Type: stripe.String(eventType),
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: start.Unix(),
			LesserThanOrEqual:  end.Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(c.PageSize)
	params.Single = true
	if startingAfter != "" {
		params.StartingAfter = stripe.String(startingAfter)
	}

	it := c.api.Events.List(params)
	page := &EventPage{}
	for it.Next() {
		raw := it.Event()
		page.LastID = raw.ID
		ev, err := fromStripeEvent(raw)
		if err != nil {
			counter.EventDecodeFailures.Inc()
			log.Warn().Err(err).Str("event", raw.ID).Msg("skipping undecodable event")
			continue
		}
		page.Events = append(page.Events, ev)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (c *StripeClient) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return "", errors.New("customer id is required")
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := c.api.Customers.Get(id, params)
	if err != nil {
		return "", err
	}
	if cust.Deleted {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(cust.Email)), nil
}

func fromStripeSubscription(s *stripe.Subscription) RemoteSubscription {
	out := RemoteSubscription{
		ID:      s.ID,
		Status:  string(s.Status),
		Created: time.Unix(s.Created, 0).UTC(),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items == nil {
		return out
	}
	for _, item := range s.Items.Data {
		if item == nil || item.Price == nil {
			continue
		}
		li := LineItem{UnitAmount: item.Price.UnitAmount}
		if item.Price.Product != nil {
			li.ProductID = item.Price.Product.ID
		}
		out.Items = append(out.Items, li)
	}
	return out
}

// eventSubscription is the minimal part of a subscription payload embedded in
// customer.subscription.* events.
type eventSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Created  int64  `json:"created"`
	Items    struct {
		Data []struct {
			Price struct {
				Product    string `json:"product"`
				UnitAmount int64  `json:"unit_amount"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func fromStripeEvent(e *stripe.Event) (Event, error) {
	out := Event{
		ID:      e.ID,
		Type:    string(e.Type),
		Created: time.Unix(e.Created, 0).UTC(),
	}
	if e.Data == nil {
		return out, nil
	}

	var sub eventSubscription
	if err := json.Unmarshal(e.Data.Raw, &sub); err != nil {
		return Event{}, fmt.Errorf("decode subscription in event %s: %w", e.ID, err)
	}
	out.Subscription = RemoteSubscription{
		ID:         sub.ID,
		CustomerID: sub.Customer,
		Status:     sub.Status,
		Created:    time.Unix(sub.Created, 0).UTC(),
	}
	for _, item := range sub.Items.Data {
		out.Subscription.Items = append(out.Subscription.Items, LineItem{
			ProductID:  item.Price.Product,
			UnitAmount: item.Price.UnitAmount,
		})
	}
	if prev, ok := e.Data.PreviousAttributes["status"].(string); ok {
		out.PreviousStatus = prev
	}
	return out, nil
}
