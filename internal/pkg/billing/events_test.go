package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want TrialTransition
	}{
		{
			name: "created trialing",
			ev:   Event{Type: EventSubscriptionCreated, Subscription: RemoteSubscription{Status: "trialing"}},
			want: TransitionTrialStarted,
		},
		{
			name: "created active",
			ev:   Event{Type: EventSubscriptionCreated, Subscription: RemoteSubscription{Status: "active"}},
			want: TransitionNone,
		},
		{
			name: "trialing to active",
			ev:   Event{Type: EventSubscriptionUpdated, PreviousStatus: "trialing", Subscription: RemoteSubscription{Status: "active"}},
			want: TransitionTrialConverted,
		},
		{
			name: "trialing to canceled",
			ev:   Event{Type: EventSubscriptionUpdated, PreviousStatus: "trialing", Subscription: RemoteSubscription{Status: "canceled"}},
			want: TransitionNone,
		},
		{
			name: "update without status change",
			ev:   Event{Type: EventSubscriptionUpdated, Subscription: RemoteSubscription{Status: "active"}},
			want: TransitionNone,
		},
		{
			name: "upper case statuses",
			ev:   Event{Type: EventSubscriptionUpdated, PreviousStatus: " TRIALING", Subscription: RemoteSubscription{Status: "Active"}},
			want: TransitionTrialConverted,
		},
		{
			name: "other type",
			ev:   Event{Type: "customer.subscription.deleted", Subscription: RemoteSubscription{Status: "trialing"}},
			want: TransitionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEvent(tt.ev))
		})
	}
}
