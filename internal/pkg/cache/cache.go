package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
)

const (
	// Database numbers on the shared Redis/Dragonfly instance.
	healthDB  = 0
	limiterDB = 1

	pingTimeout = 3 * time.Second
)

var (
	client *redis.Client

	ErrNotConfigured = errors.New("cache is not configured")
)

type Config struct {
	Host     string
	Port     int
	Password string
}

func ConfigFromEnv() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", ""),
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
	}
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetupCache connects to the cache server. It leaves the client unset when
// CACHE_HOST is empty; an unreachable server only logs a warning.
func SetupCache(cfg Config) *redis.Client {
	if !cfg.Enabled() {
		log.Info().Msg("CACHE_HOST not set, running without redis")
		return nil
	}

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       healthDB,
	})

	if err := Ping(context.Background()); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr()).Msg("could not connect to cache")
	} else {
		log.Info().Str("addr", cfg.Addr()).Msg("connected to cache")
	}
	return client
}

// Ping checks the cache connection for health reporting.
func Ping(ctx context.Context) error {
	if client == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// LimiterStorage returns redis-backed storage for the API rate limiter, or nil
// when the cache is disabled or unreachable so the limiter falls back to
// memory. The storage constructor panics on a dead server, hence the ping.
func LimiterStorage(cfg Config) fiber.Storage {
	if !cfg.Enabled() || Ping(context.Background()) != nil {
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: limiterDB,
		Reset:    false,
	})
}
