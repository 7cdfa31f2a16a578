package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "customsportal/libs/config"
)

// Config defines portal configuration.
type Config struct {
	HTTP struct {
		Port           string `yaml:"port" env:"PORTAL_HTTP_PORT"`
		MaxUploadBytes int64  `yaml:"maxUploadBytes" env:"PORTAL_MAX_UPLOAD_BYTES"`
	} `yaml:"http"`
	Backend struct {
		URL            string `yaml:"url" env:"BACKEND_URL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"BACKEND_TIMEOUT"`
	} `yaml:"backend"`
	Session struct {
		Secret string        `yaml:"secret" env:"PORTAL_SESSION_SECRET"`
		TTL    time.Duration `yaml:"ttl" env:"PORTAL_SESSION_TTL"`
		Secure bool          `yaml:"secure" env:"PORTAL_COOKIE_SECURE"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`
	Management struct {
		RefreshInterval time.Duration `yaml:"refreshInterval" env:"MANAGEMENT_REFRESH_INTERVAL"`
	} `yaml:"management"`
	Payment struct {
		SuccessURL string `yaml:"successUrl" env:"PAYMENT_SUCCESS_URL"`
		CancelURL  string `yaml:"cancelUrl" env:"PAYMENT_CANCEL_URL"`
	} `yaml:"payment"`
}

// Load configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.MaxUploadBytes = 50 << 20
	cfg.Backend.TimeoutSeconds = 30
	cfg.Session.TTL = 12 * time.Hour
	cfg.Management.RefreshInterval = 10 * time.Second
	cfg.Payment.SuccessURL = "https://yourdomain.com/success"
	cfg.Payment.CancelURL = "https://yourdomain.com/cancel"

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate implements libconfig.Validator.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend url required")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("session secret required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// HTTPTimeout returns the backend client timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the live dashboard period.
func (c *Config) RefreshInterval() time.Duration {
	if c.Management.RefreshInterval <= 0 {
		return 10 * time.Second
	}
	return c.Management.RefreshInterval
}
