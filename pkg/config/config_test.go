package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 300, cfg.Refresh.Interval)
	assert.Equal(t, 15*time.Second, cfg.Refresh.RequestTimeout)
	assert.Equal(t, "dark", cfg.Appearance.Theme)
	assert.Equal(t, "协助者", cfg.Fields.AssistingWatchers)
	assert.Equal(t, "验证完成", cfg.Workflow.VerifiedStatus)
	assert.Equal(t, []string{"完成", "关闭"}, cfg.Workflow.ClosedMarkers)
	assert.False(t, cfg.IsConfigured())
	assert.NoError(t, cfg.Validate())
}

func TestConfigSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", ConfigFileName)

	cfg := DefaultConfig()
	cfg.Server = ServerConfig{URL: "https://redmine.example.com", APIKey: "abc123"}
	cfg.Refresh.Interval = 60
	cfg.Appearance.ShowBadge = true
	cfg.Fields.AssistingWatchers = "Helpers"

	require.NoError(t, cfg.Save(configPath))
	assert.True(t, Exists(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "server")
	assert.Contains(t, raw, "workflow")

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.IsConfigured())
	assert.Equal(t, time.Minute, loaded.RefreshInterval())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	cfg, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := "server:\n  url: https://redmine.example.com\n  api_key: k\nrefresh:\n  interval: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Refresh.Interval)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval())
	assert.Equal(t, 15*time.Second, cfg.Refresh.RequestTimeout)
	assert.Equal(t, "协助者", cfg.Fields.AssistingWatchers)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(c *Config) { c.Server.URL = "http://localhost:3000/redmine" },
		},
		{
			name:    "bad url",
			modify:  func(c *Config) { c.Server.URL = "redmine.example.com" },
			wantErr: "invalid server url",
		},
		{
			name:    "negative interval",
			modify:  func(c *Config) { c.Refresh.Interval = -1 },
			wantErr: "refresh interval",
		},
		{
			name:    "unknown theme",
			modify:  func(c *Config) { c.Appearance.Theme = "neon" },
			wantErr: "invalid theme",
		},
		{
			name:    "empty field name",
			modify:  func(c *Config) { c.Fields.AssistingWatchers = " " },
			wantErr: "assisting watchers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath("/tmp/explicit.yml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.yml", got)

	t.Setenv(EnvConfigPath, "/tmp/from-env.yml")
	got, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.yml", got)

	t.Setenv(EnvConfigPath, "")
	got, err = ResolvePath("")
	if err == nil {
		assert.Equal(t, filepath.Join(AppDirName, ConfigFileName), filepath.Join(filepath.Base(filepath.Dir(got)), filepath.Base(got)))
	}
}

func TestCachePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/etc/rd", "cache.db"), cfg.CachePath("/etc/rd/config.yml"))

	cfg.Cache.Path = "/var/cache/rd.db"
	assert.Equal(t, "/var/cache/rd.db", cfg.CachePath("/etc/rd/config.yml"))
}
