package takerate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/MetricsFox/app/models"
)

// Result is the reconciliation of a signup list against a cohort list.
type Result struct {
	Matched     []string `json:"matched"`
	CohortOnly  []string `json:"cohort_only"`
	SignupsOnly []string `json:"signups_only"`
	Invalid     []string `json:"invalid,omitempty"`
	CohortSize  int      `json:"cohort_size"`
	Rate        float64  `json:"rate"`
}

// NormalizeEmails trims and lower-cases addresses, drops anything without an
// @ and removes duplicates keeping the first occurrence.
func NormalizeEmails(raw []string) []string {
	cleaned := lo.FilterMap(raw, func(email string, _ int) (string, bool) {
		e := strings.ToLower(strings.TrimSpace(email))
		return e, e != "" && strings.Contains(e, "@")
	})
	return lo.Uniq(cleaned)
}

// InvalidEmails returns the non-blank entries NormalizeEmails drops because
// they carry no @.
func InvalidEmails(raw []string) []string {
	return lo.FilterMap(raw, func(email string, _ int) (string, bool) {
		e := strings.TrimSpace(email)
		return e, e != "" && !strings.Contains(e, "@")
	})
}

// ReadEmails reads one trimmed entry per line. Blank lines and lines starting
// with # are ignored. Entries are not normalised so Reconcile can report the
// malformed ones.
func ReadEmails(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read email list: %w", err)
	}
	return out, nil
}

// Reconcile matches signups against cohort. Both lists are normalised first and
// the rate is taken against the cohort size. Entries without @ are left out of
// the match and listed in Invalid.
func Reconcile(signups, cohort []string) Result {
	s := NormalizeEmails(signups)
	c := NormalizeEmails(cohort)

	cohortOnly, signupsOnly := lo.Difference(c, s)
	matched := lo.Intersect(c, s)
	return Result{
		Matched:     matched,
		CohortOnly:  cohortOnly,
		SignupsOnly: signupsOnly,
		Invalid:     append(InvalidEmails(signups), InvalidEmails(cohort)...),
		CohortSize:  len(c),
		Rate:        Rate(len(matched), len(c)),
	}
}

// Rate is matches / cohortSize as a percentage, 0 for an empty cohort.
func Rate(matches, cohortSize int) float64 {
	if cohortSize <= 0 {
		return 0
	}
	return float64(matches) / float64(cohortSize) * 100
}

// Entry turns a result into a persisted take-rate row.
func (r Result) Entry(period string, periodStart time.Time, note string) models.TakeRateEntry {
	return NewEntry(period, periodStart, len(r.Matched), r.CohortSize, note)
}

// NewEntry builds a take-rate row from raw counts. The rate is rounded to one
// decimal place and periodStart is truncated to its UTC day.
func NewEntry(period string, periodStart time.Time, signups, newMembers int, note string) models.TakeRateEntry {
	return models.TakeRateEntry{
		Period:      strings.TrimSpace(period),
		PeriodStart: time.Date(periodStart.Year(), periodStart.Month(), periodStart.Day(), 0, 0, 0, 0, time.UTC),
		Rate:        decimal.NewFromFloat(Rate(signups, newMembers)).Round(1).InexactFloat64(),
		Signups:     signups,
		NewMembers:  newMembers,
		Note:        strings.TrimSpace(note),
	}
}

// SignupEmails collects the customer emails of productID records created in
// rng, for use as the signup side of a reconciliation.
func SignupEmails(records []models.SubscriptionRecord, productID string, rng *models.DateRange) []string {
	emails := lo.FilterMap(records, func(r models.SubscriptionRecord, _ int) (string, bool) {
		return r.CustomerEmail, r.ProductID == productID && rng.Contains(r.CreatedAt)
	})
	return NormalizeEmails(emails)
}
