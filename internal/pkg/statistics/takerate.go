package statistics

import (
	"fmt"

	"github.com/ManuelReschke/MetricsFox/app/models"
)

// BuildTakeRateData surfaces the latest entry and the full history. entries
// must be ordered oldest first.
func BuildTakeRateData(entries []models.TakeRateEntry) models.TakeRateData {
	data := models.TakeRateData{MonthlyHistory: []models.TakeRateEntry{}}
	if len(entries) == 0 {
		return data
	}

	data.MonthlyHistory = append(data.MonthlyHistory, entries...)
	latest := entries[len(entries)-1]
	data.TakeRate = latest.Rate
	data.Signups = latest.Signups
	data.NewMembers = latest.NewMembers
	data.CalculationNote = fmt.Sprintf("%s: %d signups from %d new members", latest.Period, latest.Signups, latest.NewMembers)
	return data
}
