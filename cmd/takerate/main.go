package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/app/repository"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/billing"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/database"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/logging"
)

func main() {
	env.SetupEnvFile()
	logging.Init(logging.Config{
		Format:    env.GetEnv("LOG_FORMAT", "console"),
		Level:     env.GetEnv("LOG_LEVEL", "warn"),
		Component: "takerate",
	})

	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// defaultDeps resolves the billing fetcher and the take-rate table lazily so
// that offline commands like compute never touch Stripe or MySQL.
func defaultDeps() deps {
	return deps{
		records: func(ctx context.Context) ([]models.SubscriptionRecord, error) {
			cat, err := catalog.LoadFromEnv()
			if err != nil {
				return nil, err
			}
			fetcher, err := billing.NewFetcherFromEnv(cat)
			if err != nil {
				return nil, err
			}
			return fetcher.FetchSubscriptions(ctx)
		},
		repo: func() (repository.TakeRateRepository, error) {
			cfg := database.ConfigFromEnv()
			if !cfg.Enabled() {
				return nil, fmt.Errorf("database not configured, set DB_HOST")
			}
			db, err := database.SetupDatabase(cfg)
			if err != nil {
				return nil, err
			}
			log.Debug().Str("db", cfg.Name).Msg("connected to take rate table")
			return repository.NewFactory(db).GetTakeRateRepository(), nil
		},
	}
}
