// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/qbot-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete qbot configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// Remote API
	API APIConfig `toml:"api" json:"api" yaml:"api"`

	// Session lifecycle
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Where the session entries are persisted
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	UI UIConfig `toml:"ui" json:"ui" yaml:"ui"`

	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// APIConfig describes how to reach the QBot server.
type APIConfig struct {
	// BaseURL is the server root, e.g. http://127.0.0.1:8000
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url" env:"BACKEND_URL"`
	// TimeoutSecs bounds each HTTP request. Answers are generated server-side,
	// so this is generous.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs" env:"API_TIMEOUT_SECS"`
	// RequestsPerMinute throttles outgoing calls (0 = unlimited)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute" env:"API_REQUESTS_PER_MINUTE"`
	// MaxResponseMB caps how much of a response body is read
	MaxResponseMB int `toml:"max_response_mb" json:"max_response_mb" yaml:"max_response_mb" env:"API_MAX_RESPONSE_MB"`
}

// SessionConfig controls the session store.
type SessionConfig struct {
	// ExpiryCheckSecs is the period of the background expiry check
	ExpiryCheckSecs int `toml:"expiry_check_secs" json:"expiry_check_secs" yaml:"expiry_check_secs" env:"EXPIRY_CHECK_SECS"`
	// DefaultTTLMinutes applies when the server sends no expiry and the token
	// carries no exp claim
	DefaultTTLMinutes int `toml:"default_ttl_minutes" json:"default_ttl_minutes" yaml:"default_ttl_minutes" env:"SESSION_TTL_MINUTES"`
	// WatchStorage reacts to logins/logouts made by other qbot processes
	WatchStorage bool `toml:"watch_storage" json:"watch_storage" yaml:"watch_storage" env:"WATCH_STORAGE"`
}

// StorageConfig selects the local key/value backend.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory"
	Backend string `toml:"backend" json:"backend" yaml:"backend" env:"STORAGE_BACKEND"`
	// Path overrides the backend's default location under ~/.qbot
	Path string `toml:"path" json:"path" yaml:"path" env:"STORAGE_PATH"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme" yaml:"theme" env:"THEME"`
	// Markdown renders answers with glamour; false prints raw text
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown" env:"MARKDOWN"`
	// WordWrap is the answer wrap width for CLI output
	WordWrap int `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap" env:"WORD_WRAP"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level" yaml:"level" env:"LOG_LEVEL"`
	// Path is the log file; "stderr" logs to the terminal (CLI only)
	Path string `toml:"path" json:"path" yaml:"path" env:"LOG_PATH"`
}

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "QBOT_"

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		API: APIConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSecs:       60,
			RequestsPerMinute: 0,
			MaxResponseMB:     10,
		},

		Session: SessionConfig{
			ExpiryCheckSecs:   60,
			DefaultTTLMinutes: 1440, // server-side token lifetime
			WatchStorage:      true,
		},

		Storage: StorageConfig{
			Backend: "file",
		},

		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
			WordWrap: 80,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Timeout returns the API timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// MaxResponseBytes returns the response cap in bytes.
func (a APIConfig) MaxResponseBytes() int64 {
	return int64(a.MaxResponseMB) * 1024 * 1024
}

// ExpiryCheckInterval returns the expiry poll period.
func (s SessionConfig) ExpiryCheckInterval() time.Duration {
	return time.Duration(s.ExpiryCheckSecs) * time.Second
}

// DefaultTTL returns the fallback session lifetime.
func (s SessionConfig) DefaultTTL() time.Duration {
	return time.Duration(s.DefaultTTLMinutes) * time.Minute
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the qbot home directory (used by tests and portable installs).
const HomeEnv = "QBOT_HOME"

// ConfigDir returns the qbot configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".qbot"), nil
}

func pathInConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return pathInConfigDir("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return pathInConfigDir("config.json") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return pathInConfigDir("config.yaml") }

// EnsureConfigDir ensures the config directory exists with owner-only access.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, util.DefaultDirPerm)
}

// StoragePath returns the configured storage location, or the backend's
// default file under the config directory.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	switch c.Storage.Backend {
	case "sqlite":
		return pathInConfigDir("session.db")
	default:
		return pathInConfigDir("session.json")
	}
}

// LogPath returns the configured log file, or ~/.qbot/qbot.log.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	return pathInConfigDir("qbot.log")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads ./.env and ~/.qbot/.env into the process environment.
// Variables already set are not overridden. Missing files are ignored.
func LoadDotEnv() error {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML, then JSON, then YAML, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	type source struct {
		path func() (string, error)
		load func(*Config, string) error
	}
	sources := []source{
		{ConfigPathTOML, LoadTOML},
		{ConfigPathJSON, LoadJSON},
		{ConfigPathYAML, LoadYAML},
	}

	for _, src := range sources {
		path, err := src.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := src.load(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return finalize(cfg)
	}

	return finalize(Default())
}

// LoadFromPath loads configuration from a specific file path with full validation.
// The format is chosen by extension; anything unrecognized is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies QBOT_* environment variables on top of cfg.
//
// Supported environment variables:
//   - QBOT_BACKEND_URL: api.base_url
//   - QBOT_API_TIMEOUT_SECS, QBOT_API_REQUESTS_PER_MINUTE, QBOT_API_MAX_RESPONSE_MB
//   - QBOT_EXPIRY_CHECK_SECS, QBOT_SESSION_TTL_MINUTES, QBOT_WATCH_STORAGE
//   - QBOT_STORAGE_BACKEND, QBOT_STORAGE_PATH
//   - QBOT_THEME, QBOT_MARKDOWN, QBOT_WORD_WRAP
//   - QBOT_LOG_LEVEL, QBOT_LOG_PATH
//
// Unset variables leave the current value alone.
func (c *Config) ApplyEnvOverrides() error {
	return env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix})
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# qbot configuration file\n")
	b.WriteString("# Generated by qbot - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
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

var (
	validBackends  = map[string]bool{"file": true, "sqlite": true, "memory": true}
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		add("api.base_url", "invalid URL %q", c.API.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 1 and 600, got %d", c.API.TimeoutSecs)
	}
	if c.API.RequestsPerMinute < 0 {
		add("api.requests_per_minute", "must not be negative, got %d", c.API.RequestsPerMinute)
	}
	if c.API.MaxResponseMB < 1 || c.API.MaxResponseMB > 100 {
		add("api.max_response_mb", "must be between 1 and 100, got %d", c.API.MaxResponseMB)
	}

	if c.Session.ExpiryCheckSecs < 1 || c.Session.ExpiryCheckSecs > 3600 {
		add("session.expiry_check_secs", "must be between 1 and 3600, got %d", c.Session.ExpiryCheckSecs)
	}
	if c.Session.DefaultTTLMinutes < 1 {
		add("session.default_ttl_minutes", "must be positive, got %d", c.Session.DefaultTTLMinutes)
	}

	if !validBackends[c.Storage.Backend] {
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	if !validThemes[c.UI.Theme] {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be between 20 and 400, got %d", c.UI.WordWrap)
	}

	if !validLogLevels[c.Logging.Level] {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by a partial config file and normalizes
// case-insensitive enums.
func (c *Config) SetDefaults() {
	d := Default()

	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.MaxResponseMB == 0 {
		c.API.MaxResponseMB = d.API.MaxResponseMB
	}
	if c.Session.ExpiryCheckSecs == 0 {
		c.Session.ExpiryCheckSecs = d.Session.ExpiryCheckSecs
	}
	if c.Session.DefaultTTLMinutes == 0 {
		c.Session.DefaultTTLMinutes = d.Session.DefaultTTLMinutes
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Version == "" {
		c.Version = d.Version
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "storage.backend").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent ("base_url" -> "Baseurl", matched case-insensitively).
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				lower := strings.ToLower(strings.TrimSpace(strVal))
				if lower != "yes" && lower != "no" {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
				boolVal = lower == "yes"
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.base_url",
		"api.timeout_secs",
		"api.requests_per_minute",
		"api.max_response_mb",
		"session.expiry_check_secs",
		"session.default_ttl_minutes",
		"session.watch_storage",
		"storage.backend",
		"storage.path",
		"ui.theme",
		"ui.markdown",
		"ui.word_wrap",
		"logging.level",
		"logging.path",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first access.
// A broken config file falls back to defaults with a warning on stderr.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ReloadGlobal re-reads the configuration from disk and replaces the global
// instance. On error the current instance is kept.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
