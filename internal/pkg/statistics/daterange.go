package statistics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/MetricsFox/app/models"
)

const DateLayout = "2006-01-02"

var ErrInvalidDateRange = errors.New("invalid date range")

var validate = validator.New()

// ParseDateRange parses optional start_date and end_date query values. Both
// empty means all time and yields nil.
func ParseDateRange(start, end string) (*models.DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}

	rng := &models.DateRange{}
	var err error
	if rng.Start, err = parseDate("start_date", start); err != nil {
		return nil, err
	}
	if rng.End, err = parseDate("end_date", end); err != nil {
		return nil, err
	}
	if rng.Start != nil && rng.End != nil && rng.Start.After(*rng.End) {
		return nil, fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidDateRange, start, end)
	}
	return rng, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if err := validate.Var(raw, "datetime="+DateLayout); err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidDateRange, field)
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDateRange, field, err)
	}
	return &t, nil
}
