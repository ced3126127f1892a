package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/database"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/logging"
)

func main() {
	env.SetupEnvFile()
	logging.Init(logging.Config{Format: "console", Level: env.GetEnv("LOG_LEVEL", "info"), Component: "migrate"})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	cfg := database.ConfigFromEnv()
	log.Info().Msgf("connecting to database %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"), cfg.MigrateURL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise migrations")
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Error().Msgf("failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no change: database is up to date")
		} else if err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		} else {
			log.Info().Msg("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatal().Err(err).Msg("failed to roll back the last migration")
		}
		log.Info().Msg("rolled back the last migration")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal().Msg("please pass a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid version number")
		}

		if err := m.Migrate(uint(version)); errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msgf("no change: database is already at version %d", version)
		} else if err != nil {
			log.Fatal().Err(err).Msgf("failed to migrate to version %d", version)
		} else {
			log.Info().Msgf("migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("no migrations applied yet")
			return
		} else if err != nil {
			log.Fatal().Err(err).Msg("failed to read migration version")
		}
		dirtyStatus := ""
		if dirty {
			dirtyStatus = " (dirty)"
		}
		log.Info().Msgf("current migration version: %d%s", version, dirtyStatus)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
