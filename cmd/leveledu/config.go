package main

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/leveledu/pkg/clientip"
	"github.com/dmitrymomot/leveledu/pkg/config"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/requestid"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// appConfig holds process-wide settings.
type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Name            string        `env:"APP_NAME" envDefault:"leveledu"`
	LogLevel        string        `env:"LOG_LEVEL"`
	LogFormat       string        `env:"LOG_FORMAT"`
	TenantCacheTTL  time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	TenantCacheSize int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	err := config.Load(&cfg)
	return cfg, err
}

// newLogger builds the process logger. LOG_LEVEL and LOG_FORMAT override
// the environment defaults.
func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			tenant.LoggerExtractor(),
			jwt.LoggerExtractor(),
		),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}
