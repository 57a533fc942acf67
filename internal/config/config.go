// Package config handles configuration for chatstream.
// The API key is deliberately absent: it lives in memory for one session only.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/diogo/chatstream/internal/models"
)

// EnvPrefix is the prefix for environment overrides (CHATSTREAM_DEFAULT_MODEL, ...)
const EnvPrefix = "CHATSTREAM"

// Backends
const (
	BackendHTTP = "http"
	BackendSDK  = "sdk"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	// Style is a glamour style name or a path to a JSON theme
	Style            string `json:"style" mapstructure:"style"`
	EnableEmoji      bool   `json:"enable_emoji" mapstructure:"enable_emoji"`
	PreserveNewLines bool   `json:"preserve_newlines" mapstructure:"preserve_newlines"`
	TableWrap        bool   `json:"table_wrap" mapstructure:"table_wrap"`
	InlineTableLinks bool   `json:"inline_table_links" mapstructure:"inline_table_links"`
}

// Config represents the user configuration
type Config struct {
	DefaultModel string `json:"default_model" mapstructure:"default_model"`
	BaseURL      string `json:"base_url" mapstructure:"base_url"`
	// Backend selects the transport: "http" streams SSE over tls-client,
	// "sdk" uses the openai-go client.
	Backend   string `json:"backend" mapstructure:"backend"`
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix"`

	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	TopP        float64 `json:"top_p" mapstructure:"top_p"`

	SystemPrompt string `json:"system_prompt,omitempty" mapstructure:"system_prompt"`
	// RemapErrorTurns sends earlier error turns back to the model as assistant
	// messages. The model then sees failure text as if it had said it.
	RemapErrorTurns bool `json:"remap_error_turns" mapstructure:"remap_error_turns"`
	// RequestTimeoutSeconds bounds a whole request at the transport level.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`

	Verbose         bool           `json:"verbose" mapstructure:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard" mapstructure:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty" mapstructure:"tui_theme"`
	DebugLog        string         `json:"debug_log,omitempty" mapstructure:"debug_log"`
	Markdown        MarkdownConfig `json:"markdown,omitempty" mapstructure:"markdown"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		DefaultModel:          models.DefaultModel.Name,
		BaseURL:               models.DefaultBaseURL,
		Backend:               BackendHTTP,
		KeyPrefix:             models.DefaultKeyPrefix,
		MaxTokens:             models.DefaultMaxTokens,
		Temperature:           models.DefaultTemperature,
		TopP:                  models.DefaultTopP,
		RemapErrorTurns:       true,
		RequestTimeoutSeconds: 300,
		Verbose:               false,
		CopyToClipboard:       false,
		TUITheme:              "tokyonight",
		Markdown:              DefaultMarkdownConfig(),
	}
}

// defaults flattens DefaultConfig into viper keys
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"default_model":               d.DefaultModel,
		"base_url":                    d.BaseURL,
		"backend":                     d.Backend,
		"key_prefix":                  d.KeyPrefix,
		"max_tokens":                  d.MaxTokens,
		"temperature":                 d.Temperature,
		"top_p":                       d.TopP,
		"system_prompt":               d.SystemPrompt,
		"remap_error_turns":           d.RemapErrorTurns,
		"request_timeout_seconds":     d.RequestTimeoutSeconds,
		"verbose":                     d.Verbose,
		"copy_to_clipboard":           d.CopyToClipboard,
		"tui_theme":                   d.TUITheme,
		"debug_log":                   d.DebugLog,
		"markdown.style":              d.Markdown.Style,
		"markdown.enable_emoji":       d.Markdown.EnableEmoji,
		"markdown.preserve_newlines":  d.Markdown.PreserveNewLines,
		"markdown.table_wrap":         d.Markdown.TableWrap,
		"markdown.inline_table_links": d.Markdown.InlineTableLinks,
	}
}

// Keys returns every settable configuration key, sorted
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".chatstream"), nil
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

// newViper builds a viper instance bound to path with defaults and env overrides
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	return v
}

// readInto reads path (if present) and decodes the merged settings
func readInto(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads the configuration from disk, applying environment overrides
func LoadConfig() (Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from a specific file
func LoadConfigFrom(path string) (Config, error) {
	return readInto(newViper(path))
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}
	return SaveConfigTo(filepath.Join(configDir, "config.json"), cfg)
}

// SaveConfigTo writes the configuration to a specific file
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

// SetValue updates one key in the config file at path.
// Values are given as strings and converted to the field's type.
func SetValue(path, key, value string) (Config, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if isSecretKey(key) {
		return Config{}, fmt.Errorf("%s cannot be stored; pass it with --api-key or %s_API_KEY", key, EnvPrefix)
	}
	if _, ok := defaults()[key]; !ok {
		return Config{}, fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}

	v := newViper(path)
	if _, err := readInto(v); err != nil {
		return Config{}, err
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}
	return cfg, SaveConfigTo(path, cfg)
}

func isSecretKey(key string) bool {
	switch key {
	case "api_key", "apikey", "key", "token", "credential":
		return true
	}
	return false
}

// Validate checks that the configuration values are usable
func (c Config) Validate() error {
	if c.Backend != BackendHTTP && c.Backend != BackendSDK {
		return fmt.Errorf("invalid backend %q: must be %q or %q", c.Backend, BackendHTTP, BackendSDK)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in (0, 1], got %g", c.TopP)
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds cannot be negative")
	}
	return nil
}

// GenerationParams returns the sampling parameters for requests
func (c Config) GenerationParams() models.GenerationParams {
	return models.GenerationParams{
		Model:       models.ModelFromName(c.DefaultModel).Name,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	}
}

// RequestTimeout returns the transport timeout, zero meaning no limit
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AvailableModels returns a list of known model names
func AvailableModels() []string {
	all := models.AllModels()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Name
	}
	return names
}
