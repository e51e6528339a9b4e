// Package config loads and validates the eBay OAuth configuration from the
// environment. The result is validated once, memoized, and never mutated.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/snapsell/ebay-auth/internal/validation"
)

// eBay OAuth endpoints per environment.
const (
	ProductionAuthURL  = "https://auth.ebay.com/oauth2/authorize"
	ProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	SandboxAuthURL     = "https://auth.sandbox.ebay.com/oauth2/authorize"
	SandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
)

// MinSecretLength is the minimum length of the state signing secret
const MinSecretLength = 32

// Config holds the validated eBay OAuth settings
type Config struct {
	ClientID     string        `envconfig:"EBAY_CLIENT_ID"`
	ClientSecret string        `envconfig:"EBAY_CLIENT_SECRET"`
	RedirectURI  string        `envconfig:"EBAY_REDIRECT_URI"`
	Scopes       string        `envconfig:"EBAY_SCOPES"`
	Environment  string        `envconfig:"EBAY_ENVIRONMENT" default:"sandbox"`
	Production   *bool         `envconfig:"EBAY_PRODUCTION"`
	RateWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateMax      int           `envconfig:"RATE_LIMIT_MAX" default:"10"`
	StateSecret  string        `envconfig:"STATE_SIGNING_SECRET"`
}

// ConfigError reports a configuration field that failed validation
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var (
	mu     sync.Mutex
	loaded *Config
)

// Load reads and validates the configuration from the environment. The first
// successful result is memoized; subsequent calls return it without
// re-reading the environment. Use Reload to force re-validation.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded != nil {
		return loaded, nil
	}

	cfg, err := load()
	if err != nil {
		return nil, err
	}
	loaded = cfg
	return loaded, nil
}

// Reload discards the memoized configuration and validates again
func Reload() (*Config, error) {
	mu.Lock()
	loaded = nil
	mu.Unlock()
	return Load()
}

func load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Field: "environment", Reason: err.Error()}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return &ConfigError{Field: "EBAY_CLIENT_ID", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return &ConfigError{Field: "EBAY_CLIENT_SECRET", Reason: "must not be empty"}
	}
	if err := validation.ValidateRedirectURI(c.RedirectURI); err != nil {
		return &ConfigError{Field: "EBAY_REDIRECT_URI", Reason: err.Error()}
	}

	switch c.Environment {
	case "sandbox", "production":
	default:
		return &ConfigError{Field: "EBAY_ENVIRONMENT", Reason: "must be sandbox or production"}
	}

	if c.RateWindow <= 0 {
		return &ConfigError{Field: "RATE_LIMIT_WINDOW", Reason: "must be positive"}
	}
	if c.RateMax <= 0 {
		return &ConfigError{Field: "RATE_LIMIT_MAX", Reason: "must be positive"}
	}

	if c.StateSecret == "" {
		// A synthesized secret invalidates in-flight logins on restart and
		// breaks multi-instance deployments, so it is never acceptable in
		// production.
		if c.IsProduction() {
			return &ConfigError{Field: "STATE_SIGNING_SECRET", Reason: "required in production"}
		}
		secret, err := generateFallbackSecret()
		if err != nil {
			return &ConfigError{Field: "STATE_SIGNING_SECRET", Reason: fmt.Sprintf("generating fallback: %v", err)}
		}
		slog.Warn("STATE_SIGNING_SECRET not set; using a random per-process secret",
			"environment", c.Environment)
		c.StateSecret = secret
	}
	if len(c.StateSecret) < MinSecretLength {
		return &ConfigError{
			Field:  "STATE_SIGNING_SECRET",
			Reason: fmt.Sprintf("must be at least %d characters", MinSecretLength),
		}
	}

	return nil
}

// IsProduction reports whether the production endpoints and policies apply.
// The explicit EBAY_PRODUCTION flag takes precedence over the environment
// name when both are set.
func (c *Config) IsProduction() bool {
	if c.Production != nil {
		return *c.Production
	}
	return c.Environment == "production"
}

// AuthURL returns the authorization endpoint for the configured environment
func (c *Config) AuthURL() string {
	if c.IsProduction() {
		return ProductionAuthURL
	}
	return SandboxAuthURL
}

// TokenURL returns the token endpoint for the configured environment
func (c *Config) TokenURL() string {
	if c.IsProduction() {
		return ProductionTokenURL
	}
	return SandboxTokenURL
}

// ScopeList returns the configured scopes split on spaces, or nil when unset
func (c *Config) ScopeList() []string {
	if strings.TrimSpace(c.Scopes) == "" {
		return nil
	}
	return strings.Fields(c.Scopes)
}

func generateFallbackSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
