package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BillingStatusActive    = "active"
	BillingStatusTrialing  = "trialing"
	BillingStatusCancelled = "cancelled"
	BillingStatusPastDue   = "past_due"
)

// NormalizeBillingStatus maps provider status strings onto the three buckets the
// dashboard reports on. Anything else is passed through lower-cased.
func NormalizeBillingStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "active":
		return BillingStatusActive
	case "trialing":
		return BillingStatusTrialing
	case "canceled", "cancelled":
		return BillingStatusCancelled
	default:
		return s
	}
}

// SubscriptionRecord is one remote subscription that belongs to a monitored product.
type SubscriptionRecord struct {
	SubscriptionID string          `json:"subscription_id"`
	CustomerID     string          `json:"customer_id"`
	CustomerEmail  string          `json:"customer_email"`
	ProductID      string          `json:"product_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (r SubscriptionRecord) IsActive() bool {
	return r.Status == BillingStatusActive
}

func (r SubscriptionRecord) IsTrialing() bool {
	return r.Status == BillingStatusTrialing
}

func (r SubscriptionRecord) IsCancelled() bool {
	return r.Status == BillingStatusCancelled
}
