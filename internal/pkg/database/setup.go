package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

func ConfigFromEnv() Config {
	return Config{
		User:     env.GetEnv("DB_USER", "metricsfox"),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Host:     env.GetEnv("DB_HOST", ""),
		Port:     env.GetEnv("DB_PORT", "3306"),
		Name:     env.GetEnv("DB_NAME", "metricsfox"),
	}
}

// Enabled reports whether DB_HOST was given. Without it the service runs
// without persisted take rates.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// DSN is the go-sql-driver/mysql data source name.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL is the golang-migrate database URL.
func (c Config) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// SetupDatabase opens the connection with retries and migrates the take rate
// table. The schema itself is owned by cmd/migrate; AutoMigrate only fills gaps
// in development databases.
func SetupDatabase(cfg Config) (*gorm.DB, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
		if err == nil {
			if err = DB.AutoMigrate(&models.TakeRateEntry{}); err != nil {
				return nil, fmt.Errorf("migrate take rate entries: %w", err)
			}
			return DB, nil
		}

		log.Warn().Err(err).Msgf("failed to connect to database (try %d/%d)", i+1, maxRetries)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

func GetDB() *gorm.DB {
	return DB
}
