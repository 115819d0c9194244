// Package config loads the billsync configuration from an optional YAML file
// with environment variable overrides. The resolved Config is passed
// explicitly to each component; nothing reads ambient globals afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Stripe   StripeConfig `yaml:"stripe"`
	Server   ServerConfig `yaml:"server"`
	Database string       `yaml:"database_url"`
	Redis    string       `yaml:"redis_url"`
}

type StripeConfig struct {
	APIKey               string  `yaml:"api_key"`
	APIBase              string  `yaml:"api_base"`
	WebhookSecret        string  `yaml:"webhook_secret"`
	ConnectWebhookSecret string  `yaml:"connect_webhook_secret"`
	ToleranceSeconds     int     `yaml:"tolerance_seconds"`
	RateLimitRPS         float64 `yaml:"rate_limit_rps"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the config file at path (may be empty or missing) and applies
// env overrides and defaults. A missing file is not an error; env-only
// deployments are common.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STRIPE_API_KEY"); v != "" {
		cfg.Stripe.APIKey = v
	}
	if v := os.Getenv("STRIPE_API_BASE"); v != "" {
		cfg.Stripe.APIBase = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.WebhookSecret = v
	}
	if v := os.Getenv("STRIPE_CONNECT_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.ConnectWebhookSecret = v
	}
	if v := os.Getenv("STRIPE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Stripe.RateLimitRPS = f
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Stripe.APIBase == "" {
		cfg.Stripe.APIBase = "https://api.stripe.com"
	}
	if cfg.Stripe.ToleranceSeconds <= 0 {
		cfg.Stripe.ToleranceSeconds = 300
	}
	if cfg.Stripe.RateLimitRPS <= 0 {
		cfg.Stripe.RateLimitRPS = 25
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// Tolerance returns the webhook signature timestamp tolerance.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.Stripe.ToleranceSeconds) * time.Second
}

// SecretFor returns the signing secret for an endpoint type.
func (c *Config) SecretFor(endpointType string) string {
	if endpointType == "connect" && c.Stripe.ConnectWebhookSecret != "" {
		return c.Stripe.ConnectWebhookSecret
	}
	return c.Stripe.WebhookSecret
}
