package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"gorm.io/gorm"
)

// ErrTakeRateNotFound is returned when an entry to change does not exist
var ErrTakeRateNotFound = errors.New("take rate entry not found")

// TakeRateRepository defines the interface for take-rate table operations
type TakeRateRepository interface {
	List(ctx context.Context) ([]models.TakeRateEntry, error)
	Latest(ctx context.Context) (*models.TakeRateEntry, error)
	GetByPeriodStart(ctx context.Context, periodStart string) (*models.TakeRateEntry, error)
	Upsert(ctx context.Context, entry *models.TakeRateEntry) error
	Delete(ctx context.Context, id uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	TakeRate TakeRateRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		TakeRate: NewTakeRateRepository(db),
	}
}
