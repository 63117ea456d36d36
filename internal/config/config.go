// Package config loads server configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/webhook"
)

const (
	defaultDBPath      = "./data/settleup.db"
	defaultPort        = "8080"
	defaultJWTSecret   = "dev-secret-change-in-production"
	defaultTokenTTL    = 24 * time.Hour
	defaultTimezone    = "UTC"
	minJWTSecretLength = 16
)

// Config is the full server configuration.
type Config struct {
	DBPath    string        `yaml:"db_path"`
	Port      string        `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Timezone  string        `yaml:"timezone"`

	Paycode paycode.Config `yaml:"paycode"`
	Webhook webhook.Config `yaml:"webhook"`

	location *time.Location
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:    defaultDBPath,
		Port:      defaultPort,
		JWTSecret: defaultJWTSecret,
		TokenTTL:  defaultTokenTTL,
		LogLevel:  "info",
		Timezone:  defaultTimezone,
		Paycode:   paycode.Config{Prefix: paycode.DefaultPrefix},
		Webhook:   webhook.Config{}.WithDefaults(),
	}
}

// Load builds the configuration. The YAML file path comes from SETTLEUP_CONFIG.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("SETTLEUP_CONFIG"), os.Getenv)
}

// LoadFrom reads path (if non-empty) and applies overrides from getenv.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg, getenv)
	cfg.Webhook = cfg.Webhook.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.Port, "PORT")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Paycode.Prefix, "PAYCODE_PREFIX")
	setString(&cfg.Paycode.Suffix, "PAYCODE_SUFFIX")
	setString(&cfg.Webhook.Secret, "WEBHOOK_SECRET")
	setString(&cfg.Webhook.LegacyToken, "WEBHOOK_LEGACY_TOKEN")
	setString(&cfg.Webhook.SignatureHeader, "WEBHOOK_SIGNATURE_HEADER")

	if v := getenv("WEBHOOK_MAX_SKEW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Webhook.MaxSkew = d
		}
	}
	if v := getenv("TOKEN_TTL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.TokenTTL = time.Duration(h) * time.Hour
		}
	}
}

// Validate checks the configuration and resolves the timezone.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.Webhook.MaxSkew < 0 {
		errs = append(errs, errors.New("webhook.max_skew must not be negative"))
	}
	if strings.TrimSpace(c.Paycode.Prefix) == "" {
		errs = append(errs, errors.New("paycode.prefix is required"))
	}
	if err := c.Paycode.Validate(); err != nil {
		errs = append(errs, err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	} else {
		c.location = loc
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the resolved timezone, UTC before Validate succeeds.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// UsesDefaultJWTSecret reports whether the development secret is in use.
func (c Config) UsesDefaultJWTSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}
