// Package config содержит логику чтения конфигурации сервиса продажи билетов.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	JWTSecret   string `env:"JWT_SECRET"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	LogLevel    string `env:"LOG_LEVEL"`

	LogDev          bool          `env:"LOG_DEV"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret for signing JWT")
	flag.StringVar(&cfg.RabbitMQURL, "r", "", "RabbitMQ URL, notifications are disabled when empty")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level: debug, info, warn, error")

	flag.Parse()

	for _, f := range []struct {
		dst *string
		env string
	}{
		{&cfg.RunAddress, fromEnv.RunAddress},
		{&cfg.DatabaseURI, fromEnv.DatabaseURI},
		{&cfg.JWTSecret, fromEnv.JWTSecret},
		{&cfg.RabbitMQURL, fromEnv.RabbitMQURL},
		{&cfg.LogLevel, fromEnv.LogLevel},
	} {
		if f.env != "" {
			*f.dst = f.env
		}
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	return cfg, nil
}
