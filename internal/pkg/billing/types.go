package billing

import (
	"context"
	"time"
)

const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
)

// LineItem is the provider-agnostic shape of one subscription item.
type LineItem struct {
	ProductID  string
	UnitAmount int64 // minor units
}

// RemoteSubscription is the provider-agnostic shape used by the fetcher when
// reading subscription pages.
type RemoteSubscription struct {
	ID         string
	CustomerID string
	Status     string
	Created    time.Time
	Items      []LineItem
}

// ProductIDs returns the product ids of all line items in order.
func (s RemoteSubscription) ProductIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Event is a subscription change event as reported by the provider.
type Event struct {
	ID             string
	Type           string
	Created        time.Time
	Subscription   RemoteSubscription
	PreviousStatus string
}

type SubscriptionPage struct {
	Subscriptions []RemoteSubscription
	HasMore       bool
}

// EventPage is one page of events. LastID is the id of the last event the
// provider listed, including events that were skipped, and is the cursor for
// the next page.
type EventPage struct {
	Events  []Event
	HasMore bool
	LastID  string
}

// API is the slice of the billing provider used by the fetcher. Every list call
// returns a single page; startingAfter is the id of the last item of the
// previous page, empty for the first page.
type API interface {
	ListSubscriptions(ctx context.Context, startingAfter string) (*SubscriptionPage, error)
	ListEvents(ctx context.Context, eventType string, start, end time.Time, startingAfter string) (*EventPage, error)
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}
