package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the file name inside the config directory
	ConfigFileName = "config.yml"
	// AppDirName is the directory created under the user config dir
	AppDirName = "redmine-desktop"
	// EnvConfigPath overrides the config file location
	EnvConfigPath = "REDMINE_DESKTOP_CONFIG"
)

// Config represents the client configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Appearance AppearanceConfig `yaml:"appearance"`
	Fields     FieldsConfig     `yaml:"fields"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig represents the connection settings
type ServerConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// RefreshConfig represents background refresh settings
type RefreshConfig struct {
	Interval       int           `yaml:"interval"` // seconds, 0 disables polling
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AppearanceConfig holds presentation preferences
type AppearanceConfig struct {
	Theme        string `yaml:"theme"`
	Transparency bool   `yaml:"transparency"`
	ShowBadge    bool   `yaml:"show_badge"`
}

// FieldsConfig names deployment specific custom fields
type FieldsConfig struct {
	AssistingWatchers string `yaml:"assisting_watchers"`
}

// WorkflowConfig names the status markers of the deployment workflow
type WorkflowConfig struct {
	VerifiedStatus string   `yaml:"verified_status"`
	DoneStatus     string   `yaml:"done_status"`
	ClosedMarkers  []string `yaml:"closed_markers"`
}

// CacheConfig locates the local cache database
type CacheConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Refresh: RefreshConfig{
			Interval:       300,
			RequestTimeout: 15 * time.Second,
		},
		Appearance: AppearanceConfig{
			Theme: "dark",
		},
		Fields: FieldsConfig{
			AssistingWatchers: "协助者",
		},
		Workflow: WorkflowConfig{
			VerifiedStatus: "验证完成",
			DoneStatus:     "开发完成",
			ClosedMarkers:  []string{"完成", "关闭"},
		},
	}
}

// ResolvePath returns the config file path: flag value, then environment, then user config dir
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, AppDirName, ConfigFileName), nil
}

// Load loads configuration from path. A missing file yields the defaults.
// A corrupt file yields the defaults together with the parse error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes configuration to path atomically
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if a configuration file exists at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsConfigured reports whether connection settings are present
func (c *Config) IsConfigured() bool {
	return strings.TrimSpace(c.Server.URL) != "" && strings.TrimSpace(c.Server.APIKey) != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid server url '%s': must be an http or https URL", c.Server.URL)
		}
	}

	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}

	if c.Refresh.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}

	switch c.Appearance.Theme {
	case "", "dark", "light":
	default:
		return fmt.Errorf("invalid theme '%s': must be dark or light", c.Appearance.Theme)
	}

	if strings.TrimSpace(c.Fields.AssistingWatchers) == "" {
		return fmt.Errorf("assisting watchers field name is required")
	}

	return nil
}

// RefreshInterval returns the polling interval, 0 when polling is disabled
func (c *Config) RefreshInterval() time.Duration {
	if c.Refresh.Interval <= 0 {
		return 0
	}
	return time.Duration(c.Refresh.Interval) * time.Second
}

// CachePath returns the configured cache path or one next to the config file
func (c *Config) CachePath(configPath string) string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(filepath.Dir(configPath), "cache.db")
}

// applyDefaults fills values a partial file leaves empty
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Refresh.RequestTimeout == 0 {
		c.Refresh.RequestTimeout = def.Refresh.RequestTimeout
	}
	if c.Appearance.Theme == "" {
		c.Appearance.Theme = def.Appearance.Theme
	}
	if c.Fields.AssistingWatchers == "" {
		c.Fields.AssistingWatchers = def.Fields.AssistingWatchers
	}
	if c.Workflow.VerifiedStatus == "" {
		c.Workflow.VerifiedStatus = def.Workflow.VerifiedStatus
	}
	if c.Workflow.DoneStatus == "" {
		c.Workflow.DoneStatus = def.Workflow.DoneStatus
	}
	if c.Workflow.ClosedMarkers == nil {
		c.Workflow.ClosedMarkers = def.Workflow.ClosedMarkers
	}
}
