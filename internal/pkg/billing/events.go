package billing

import (
	"strings"
)

// TrialTransition is what a subscription event means for trial conversion.
type TrialTransition int

const (
	TransitionNone TrialTransition = iota
	TransitionTrialStarted
	TransitionTrialConverted
)

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// ClassifyEvent maps an event onto a trial transition. A trial starts when a
// subscription is created in trialing state. It converts when an update moves
// it from trialing to active.
func ClassifyEvent(ev Event) TrialTransition {
	switch ev.Type {
	case EventSubscriptionCreated:
		if normalizeStatus(ev.Subscription.Status) == "trialing" {
			return TransitionTrialStarted
		}
	case EventSubscriptionUpdated:
		if normalizeStatus(ev.PreviousStatus) == "trialing" && normalizeStatus(ev.Subscription.Status) == "active" {
			return TransitionTrialConverted
		}
	}
	return TransitionNone
}
