// Package config handles configuration loading for ultron.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ultronhq/ultron/internal/models"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "ULTRON_"

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" env:"STYLE"`                           // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji" env:"ENABLE_EMOJI"`             // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines" env:"PRESERVE_NEWLINES"`   // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap" env:"TABLE_WRAP"`                 // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links" env:"INLINE_TABLE_LINKS"` // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	// BaseURL is the scheme and host of the assistant backend.
	BaseURL string `json:"base_url" env:"BASE_URL"`
	// APIPrefix is the path under which the chat endpoints are mounted.
	APIPrefix string `json:"api_prefix" env:"API_PREFIX"`
	// RequestTimeout bounds non-streaming requests, in seconds.
	RequestTimeout int `json:"request_timeout" env:"REQUEST_TIMEOUT"`
	// StreamIdleTimeout aborts a stream that delivers no bytes for this many
	// seconds. Zero disables it.
	StreamIdleTimeout int `json:"stream_idle_timeout" env:"STREAM_IDLE_TIMEOUT"`
	// FollowThresholdRows is the distance from the bottom, in terminal rows,
	// within which the chat view keeps following new output.
	FollowThresholdRows int `json:"follow_threshold_rows" env:"FOLLOW_THRESHOLD_ROWS"`

	CopyToClipboard bool           `json:"copy_to_clipboard" env:"COPY_TO_CLIPBOARD"`
	TUITheme        string         `json:"tui_theme,omitempty" env:"TUI_THEME"`
	LogLevel        string         `json:"log_level" env:"LOG_LEVEL"`
	LogFile         string         `json:"log_file,omitempty" env:"LOG_FILE"`
	Markdown        MarkdownConfig `json:"markdown,omitempty" envPrefix:"MARKDOWN_"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "ultron",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:             models.DefaultBaseURL,
		APIPrefix:           models.DefaultAPIPrefix,
		RequestTimeout:      60,
		StreamIdleTimeout:   120,
		FollowThresholdRows: 8,
		CopyToClipboard:     false,
		TUITheme:            "ultron",
		LogLevel:            "info",
		Markdown:            DefaultMarkdownConfig(),
	}
}

// RequestTimeoutDuration returns RequestTimeout as a time.Duration
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// StreamIdleTimeoutDuration returns StreamIdleTimeout as a time.Duration
func (c Config) StreamIdleTimeoutDuration() time.Duration {
	return time.Duration(c.StreamIdleTimeout) * time.Second
}

// Validate checks values that would make the client unusable
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://, got %q", c.BaseURL)
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/', got %q", c.APIPrefix)
	}
	if c.RequestTimeout < 0 || c.StreamIdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.FollowThresholdRows < 0 {
		return fmt.Errorf("follow_threshold_rows must not be negative")
	}
	return nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ultron")
	return configDir, nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the log file path, defaulting to ~/.ultron/ultron.log
func GetLogPath(cfg Config) (string, error) {
	if cfg.LogFile != "" {
		return cfg.LogFile, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "ultron.log"), nil
}

// LoadConfig loads the configuration from disk and applies environment
// overrides.
func LoadConfig() (Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from path and applies environment
// overrides. A missing file yields the defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadConfigFile reads path without environment overrides. A missing file
// yields the defaults.
func ReadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any ULTRON_* environment variables that are set
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}
	return SaveConfigTo(filepath.Join(configDir, "config.json"), cfg)
}

// SaveConfigTo saves the configuration to path
func SaveConfigTo(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

type setter func(cfg *Config, value string) error

func stringSetter(field func(*Config) *string) setter {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func intSetter(field func(*Config) *int) setter {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		*field(cfg) = n
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", value)
		}
		*field(cfg) = b
		return nil
	}
}

var setters = map[string]setter{
	"base_url":                    stringSetter(func(c *Config) *string { return &c.BaseURL }),
	"api_prefix":                  stringSetter(func(c *Config) *string { return &c.APIPrefix }),
	"request_timeout":             intSetter(func(c *Config) *int { return &c.RequestTimeout }),
	"stream_idle_timeout":         intSetter(func(c *Config) *int { return &c.StreamIdleTimeout }),
	"follow_threshold_rows":       intSetter(func(c *Config) *int { return &c.FollowThresholdRows }),
	"copy_to_clipboard":           boolSetter(func(c *Config) *bool { return &c.CopyToClipboard }),
	"tui_theme":                   stringSetter(func(c *Config) *string { return &c.TUITheme }),
	"log_level":                   stringSetter(func(c *Config) *string { return &c.LogLevel }),
	"log_file":                    stringSetter(func(c *Config) *string { return &c.LogFile }),
	"markdown.style":              stringSetter(func(c *Config) *string { return &c.Markdown.Style }),
	"markdown.enable_emoji":       boolSetter(func(c *Config) *bool { return &c.Markdown.EnableEmoji }),
	"markdown.preserve_newlines":  boolSetter(func(c *Config) *bool { return &c.Markdown.PreserveNewLines }),
	"markdown.table_wrap":         boolSetter(func(c *Config) *bool { return &c.Markdown.TableWrap }),
	"markdown.inline_table_links": boolSetter(func(c *Config) *bool { return &c.Markdown.InlineTableLinks }),
}

// Keys returns the settable configuration keys in sorted order
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the configuration key and validates the result
func Set(cfg *Config, key, value string) error {
	set, ok := setters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	updated := *cfg
	if err := set(&updated, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*cfg = updated
	return nil
}
