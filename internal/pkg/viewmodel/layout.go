package viewmodel

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/MetricsFox/app/models"
)

// Layout holds the fields every page template reads.
type Layout struct {
	Page    string
	Title   string
	IsDev   bool
	IsError bool
	Msg     string
}

// Funcs returns the helpers available inside the html templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money":     Money,
		"percent":   Percent,
		"date":      Date,
		"sourceTag": SourceTag,
	}
}

// Money renders an amount as dollars with two decimals and thousands separators.
func Money(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Percent renders a 0..100 value with one decimal.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

// SourceTag marks estimated conversion figures.
func SourceTag(src models.ConversionSource) string {
	if src == models.ConversionEstimated {
		return fmt.Sprintf("(%s)", src)
	}
	return ""
}
