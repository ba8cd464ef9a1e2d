// ABOUTME: Configuration loading and parsing for greentic-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete greentic-gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit"`
	Events      EventsConfig      `yaml:"events"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration. An empty path selects the
// in-memory store (useful for local runs and tests).
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token signing configuration. TenantKeys maps
// "<env>:<tenant>" to a per-tenant signing key; scopes without an entry
// fall back to DefaultKey.
type AuthConfig struct {
	DefaultKey string            `yaml:"default_key"`
	TenantKeys map[string]string `yaml:"tenant_keys"`

	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// RateLimitConfig holds token issuance rate limiting. An empty redis_url
// selects the in-process fixed-window limiter.
type RateLimitConfig struct {
	RedisURL string `yaml:"redis_url"`
	PerScope int    `yaml:"per_scope"`

	Window    time.Duration `yaml:"-"`
	WindowRaw string        `yaml:"window"`
}

// EventsConfig holds the activity event broker settings. An empty
// amqp_url disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// AttachmentsConfig holds attachment validation limits.
type AttachmentsConfig struct {
	MaxBytes    int64    `yaml:"max_bytes"`
	AllowedMime []string `yaml:"allowed_mime"`
}

// ProvidersConfig holds per-platform API credentials.
type ProvidersConfig struct {
	Webex    ProviderConfig `yaml:"webex"`
	Telegram ProviderConfig `yaml:"telegram"`
}

// ProviderConfig holds one platform's API endpoint and bot token.
type ProviderConfig struct {
	APIBase string `yaml:"api_base"`
	Token   string `yaml:"token"`
}

// WebhookConfig holds reconciler settings.
type WebhookConfig struct {
	NamePrefix string `yaml:"name_prefix"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.DefaultKey == "" && len(c.Auth.TenantKeys) == 0 {
		return fmt.Errorf("auth.default_key or at least one auth.tenant_keys entry is required")
	}

	if c.RateLimit.PerScope < 0 {
		return fmt.Errorf("ratelimit.per_scope must not be negative")
	}

	if c.Events.AMQPURL != "" && c.Events.Exchange == "" {
		return fmt.Errorf("events.exchange is required when events.amqp_url is set")
	}

	if c.Attachments.MaxBytes < 0 {
		return fmt.Errorf("attachments.max_bytes must not be negative")
	}

	return nil
}

// TenantKeyBytes returns the per-scope signing keys as byte slices.
func (c *Config) TenantKeyBytes() map[string][]byte {
	if len(c.Auth.TenantKeys) == 0 {
		return nil
	}
	keys := make(map[string][]byte, len(c.Auth.TenantKeys))
	for scope, key := range c.Auth.TenantKeys {
		keys[scope] = []byte(key)
	}
	return keys
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing ratelimit.window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	if cfg.Webhook.TimeoutRaw != "" {
		cfg.Webhook.Timeout, err = time.ParseDuration(cfg.Webhook.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing webhook.timeout %q: %w", cfg.Webhook.TimeoutRaw, err)
		}
	}

	return nil
}
