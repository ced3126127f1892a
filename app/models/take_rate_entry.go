package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// TakeRateEntry is one hand-maintained monthly take-rate figure, produced by
// reconciling a cohort email list against product signups.
type TakeRateEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Period      string    `gorm:"type:varchar(64);not null" json:"month" validate:"required,min=1,max=64"`
	PeriodStart time.Time `gorm:"type:date;not null;uniqueIndex" json:"period_start" validate:"required"`
	Rate        float64   `gorm:"not null" json:"rate" validate:"gte=0,lte=100"`
	Signups     int       `gorm:"not null" json:"signups" validate:"gte=0,ltefield=NewMembers"`
	NewMembers  int       `gorm:"not null" json:"newMembers" validate:"gte=0"`
	Note        string    `gorm:"type:varchar(255)" json:"note,omitempty" validate:"max=255"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (TakeRateEntry) TableName() string {
	return "take_rate_entries"
}

func (e *TakeRateEntry) Validate() error {
	v := validator.New()
	return v.Struct(e)
}

func ListTakeRateEntries(db *gorm.DB) ([]TakeRateEntry, error) {
	var entries []TakeRateEntry
	err := db.Order("period_start ASC").Find(&entries).Error
	return entries, err
}

// TakeRateData is the take-rate block of the aggregate metrics. Nothing in it is
// derived from live billing data.
type TakeRateData struct {
	TakeRate        float64         `json:"take_rate"`
	NewMembers      int             `json:"new_members"`
	Signups         int             `json:"signups"`
	CalculationNote string          `json:"calculation_note"`
	MonthlyHistory  []TakeRateEntry `json:"monthly_history"`
}
