package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// takeRateRepository implements the TakeRateRepository interface
type takeRateRepository struct {
	db *gorm.DB
}

// NewTakeRateRepository creates a new take rate repository instance
func NewTakeRateRepository(db *gorm.DB) TakeRateRepository {
	return &takeRateRepository{db: db}
}

// List returns all entries ordered by period, oldest first
func (r *takeRateRepository) List(ctx context.Context) ([]models.TakeRateEntry, error) {
	return models.ListTakeRateEntries(r.db.WithContext(ctx))
}

// Latest returns the most recent entry or nil if the table is empty
func (r *takeRateRepository) Latest(ctx context.Context) (*models.TakeRateEntry, error) {
	var entry models.TakeRateEntry
	err := r.db.WithContext(ctx).Order("period_start DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByPeriodStart looks an entry up by its YYYY-MM-DD period start. A missing
// entry returns nil without error
func (r *takeRateRepository) GetByPeriodStart(ctx context.Context, periodStart string) (*models.TakeRateEntry, error) {
	day, err := time.Parse("2006-01-02", periodStart)
	if err != nil {
		return nil, fmt.Errorf("invalid period start %q: %w", periodStart, err)
	}
	var entry models.TakeRateEntry
	err = r.db.WithContext(ctx).Where("period_start = ?", day).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert validates the entry and inserts it, replacing the figures of an
// existing entry for the same period start
func (r *takeRateRepository) Upsert(ctx context.Context, entry *models.TakeRateEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"period", "rate", "signups", "new_members", "note", "updated_at"}),
	}).Create(entry).Error
}

// Delete removes an entry by ID
func (r *takeRateRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.TakeRateEntry{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTakeRateNotFound
	}
	return nil
}
