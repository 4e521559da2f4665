// Package config loads service settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"qsteel/internal/opt"
)

type Config struct {
	Port        string        `yaml:"port"`
	DatabaseURL string        `yaml:"database_url"`
	DBMigrate   bool          `yaml:"db_migrate"`
	RedisURL    string        `yaml:"redis_url"`
	LogLevel    string        `yaml:"log_level"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`

	Auth  AuthConfig  `yaml:"auth"`
	Rate  RateConfig  `yaml:"rate"`
	MinIO MinIOConfig `yaml:"minio"`
	Fleet FleetConfig `yaml:"fleet"`

	Webhooks WebhookConfig `yaml:"webhooks"`

	// Constraints replaces the built-in rule set when present.
	Constraints *opt.Constraints `yaml:"constraints,omitempty"`
}

type AuthConfig struct {
	Mode       string `yaml:"mode"`
	HMACSecret string `yaml:"hmac_secret"`
	JWKSURL    string `yaml:"jwks_url"`
}

// RateConfig bounds request throughput. RPS <= 0 disables the limiter.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

// WebhookConfig lists endpoints that receive every alert as a signed POST.
type WebhookConfig struct {
	URLs        []string `yaml:"urls"`
	Secret      string   `yaml:"secret"`
	MaxAttempts int      `yaml:"max_attempts"`
}

type FleetConfig struct {
	Seed int64 `yaml:"seed"`
	Size int   `yaml:"size"`
}

func Default() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		CacheTTL: 300 * time.Second,
		Auth:     AuthConfig{Mode: "dev"},
		Rate:     RateConfig{RPS: 0, Burst: 20},
		MinIO:    MinIOConfig{Bucket: "qsteel-ledger"},
		Fleet:    FleetConfig{Seed: 1, Size: 120},
		Webhooks: WebhookConfig{MaxAttempts: 5},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	boolean("DB_MIGRATE", &c.DBMigrate)
	str("REDIS_URL", &c.RedisURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("AUTH_JWKS_URL", &c.Auth.JWKSURL)
	str("MINIO_ENDPOINT", &c.MinIO.Endpoint)
	str("MINIO_ACCESS_KEY", &c.MinIO.AccessKey)
	str("MINIO_SECRET_KEY", &c.MinIO.SecretKey)
	str("MINIO_BUCKET", &c.MinIO.Bucket)
	boolean("MINIO_USE_SSL", &c.MinIO.UseSSL)
	str("WEBHOOK_SECRET", &c.Webhooks.Secret)
	if v, ok := lookup("WEBHOOK_URLS"); ok && v != "" {
		c.Webhooks.URLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Webhooks.URLs = append(c.Webhooks.URLs, u)
			}
		}
	}

	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CACHE_TTL: %w", err))
		} else {
			c.CacheTTL = d
		}
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_RPS: %w", err))
		} else {
			c.Rate.RPS = f
		}
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_BURST: %w", err))
		} else {
			c.Rate.Burst = n
		}
	}
	if v, ok := lookup("FLEET_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FLEET_SEED: %w", err))
		} else {
			c.Fleet.Seed = n
		}
	}
	if v, ok := lookup("WEBHOOK_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err))
		} else {
			c.Webhooks.MaxAttempts = n
		}
	}
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port %q is not numeric", c.Port))
	}
	switch strings.ToLower(c.Auth.Mode) {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmac_secret required in hmac mode"))
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwks_url required in jwks mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	if c.Rate.RPS > 0 && c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("rate.burst must be positive when rate.rps is set"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_ttl must be positive"))
	}
	if c.Fleet.Size <= 0 {
		errs = append(errs, errors.New("fleet.size must be positive"))
	}
	if c.MinIO.Enabled() && c.MinIO.Bucket == "" {
		errs = append(errs, errors.New("minio.bucket required when minio.endpoint is set"))
	}
	for _, u := range c.Webhooks.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("webhooks: %q is not an http(s) URL", u))
		}
	}
	if len(c.Webhooks.URLs) > 0 && c.Webhooks.MaxAttempts <= 0 {
		errs = append(errs, errors.New("webhooks.max_attempts must be positive"))
	}
	if cons := c.Constraints; cons != nil {
		if cons.MinRakeTons <= 0 || cons.MaxRakeTons < cons.MinRakeTons {
			errs = append(errs, errors.New("constraints: rake tonnage bounds invalid"))
		}
		if cons.MinWagons <= 0 || cons.MaxWagons < cons.MinWagons {
			errs = append(errs, errors.New("constraints: wagon count bounds invalid"))
		}
	}
	return errors.Join(errs...)
}

// PlannerConstraints is the configured rule set or the built-in default.
func (c Config) PlannerConstraints() opt.Constraints {
	if c.Constraints != nil {
		return c.Constraints.Clone()
	}
	return opt.DefaultConstraints()
}
