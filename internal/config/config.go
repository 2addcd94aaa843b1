// Package config loads assistant-session settings from defaults, a YAML or
// TOML config file, .env files and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the complete application configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Gateway   GatewayConfig   `yaml:"gateway" toml:"gateway"`
	OpenAI    OpenAIConfig    `yaml:"openai" toml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" toml:"anthropic"`
	Webhook   WebhookConfig   `yaml:"webhook" toml:"webhook"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Chat      ChatConfig      `yaml:"chat" toml:"chat"`

	// Source is the config file that was read, if any
	Source string `yaml:"-" toml:"-"`
}

// StorageConfig selects where sessions are kept
type StorageConfig struct {
	Backend      string   `yaml:"backend" toml:"backend"`
	Path         string   `yaml:"path,omitempty" toml:"path"`
	PersistDelay Duration `yaml:"persist_delay" toml:"persist_delay"`
}

// GatewayConfig points the chat client at a remote chat gateway. When URL is
// empty the configured providers are called in-process.
type GatewayConfig struct {
	URL      string   `yaml:"url,omitempty" toml:"url"`
	TitleURL string   `yaml:"title_url,omitempty" toml:"title_url"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

// OpenAIConfig configures the OpenAI chat completions provider
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
}

// AnthropicConfig configures title generation through the Messages API
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
	Version string `yaml:"version" toml:"version"`
}

// WebhookConfig configures a workflow webhook provider
type WebhookConfig struct {
	URL     string   `yaml:"url,omitempty" toml:"url"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// ServerConfig configures the chat gateway server
type ServerConfig struct {
	Addr            string   `yaml:"addr" toml:"addr"`
	SystemPrompt    string   `yaml:"system_prompt" toml:"system_prompt"`
	AllowedOrigins  []string `yaml:"allowed_origins" toml:"allowed_origins"`
	RateLimit       float64  `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 disables
	RateBurst       int      `yaml:"rate_burst" toml:"rate_burst"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// ChatConfig configures the interactive client
type ChatConfig struct {
	Greeting      string `yaml:"greeting,omitempty" toml:"greeting"`
	GenerateTitle bool   `yaml:"generate_title" toml:"generate_title"`
}

// Duration is a time.Duration written as a Go duration string ("250ms")
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:      BackendSQLite,
			PersistDelay: Duration{250 * time.Millisecond},
		},
		Gateway: GatewayConfig{
			Timeout: Duration{2 * time.Minute},
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			BaseURL: "https://api.anthropic.com",
			Model:   "claude-3-5-haiku-latest",
			Version: "2023-06-01",
		},
		Webhook: WebhookConfig{
			Timeout: Duration{2 * time.Minute},
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:3000",
			SystemPrompt:    "You are a friendly assistant. Markdown is allowed. Write formulas in LaTeX wrapped in $$ ... $$.",
			AllowedOrigins:  []string{"*"},
			RateLimit:       5,
			RateBurst:       10,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Chat: ChatConfig{
			GenerateTitle: true,
		},
	}
}

// Load builds the configuration. explicit names a config file that must
// exist; otherwise the first existing candidate is read. envFiles are loaded
// into the process environment without overriding variables already set.
func Load(explicit string, candidates []string, envFiles ...string) (*Config, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a YAML or TOML file (by extension) over cfg
func LoadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}
	cfg.Source = path
	return nil
}

func loadEnvFiles(files ...string) error {
	var existing []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variables on top of file settings.
//
// Supported environment variables:
//   - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
//   - ANTHROPIC_API_KEY
//   - WEBHOOK_URL
//   - ASSISTANT_GATEWAY_URL, ASSISTANT_TITLE_URL
//   - ASSISTANT_STORAGE: sqlite path, or "memory"
//   - ASSISTANT_ADDR: server listen address
//   - ASSISTANT_RATE_LIMIT: server requests per second
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("ASSISTANT_GATEWAY_URL"); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv("ASSISTANT_TITLE_URL"); v != "" {
		c.Gateway.TitleURL = v
	}
	if v := os.Getenv("ASSISTANT_STORAGE"); v != "" {
		if v == BackendMemory {
			c.Storage.Backend = BackendMemory
		} else {
			c.Storage.Backend = BackendSQLite
			c.Storage.Path = v
		}
	}
	if v := os.Getenv("ASSISTANT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ASSISTANT_RATE_LIMIT"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RateLimit = rate
		}
	}
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks URLs, durations and the storage backend
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, memory", c.Storage.Backend),
		})
	}

	durations := map[string]Duration{
		"storage.persist_delay":   c.Storage.PersistDelay,
		"gateway.timeout":         c.Gateway.Timeout,
		"webhook.timeout":         c.Webhook.Timeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for _, field := range []string{"storage.persist_delay", "gateway.timeout", "webhook.timeout", "server.shutdown_timeout"} {
		if durations[field].Duration < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "duration cannot be negative"})
		}
	}

	urls := []struct {
		field    string
		value    string
		required bool
	}{
		{"gateway.url", c.Gateway.URL, false},
		{"gateway.title_url", c.Gateway.TitleURL, false},
		{"openai.base_url", c.OpenAI.BaseURL, true},
		{"anthropic.base_url", c.Anthropic.BaseURL, true},
		{"webhook.url", c.Webhook.URL, false},
	}
	for _, u := range urls {
		if u.value == "" {
			if u.required {
				errs = append(errs, ValidationError{Field: u.field, Message: "must not be empty"})
			}
			continue
		}
		if err := validateHTTPURL(u.value); err != nil {
			errs = append(errs, ValidationError{Field: u.field, Message: err.Error()})
		}
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "cannot be negative"})
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must be at least 1 when rate limiting is enabled"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	out.OpenAI.APIKey = redact(c.OpenAI.APIKey)
	out.Anthropic.APIKey = redact(c.Anthropic.APIKey)
	return &out
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
