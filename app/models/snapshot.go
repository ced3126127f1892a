package models

import "time"

// Snapshot is the immutable result of one full fetch cycle. It is replaced,
// never mutated, by the next fetch.
type Snapshot struct {
	ID         string
	Records    []SubscriptionRecord
	Trials     []TrialConversion
	CapturedAt time.Time
}

// Age returns how long ago the snapshot was captured relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// TrialsEstimated reports whether the historical trial table was synthesised
// instead of measured from billing events.
func (s *Snapshot) TrialsEstimated() bool {
	for _, t := range s.Trials {
		if t.Source == ConversionEstimated {
			return true
		}
	}
	return false
}
