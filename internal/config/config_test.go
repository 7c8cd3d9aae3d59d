package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/grid"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/var/lib/visionboard"},
		Canvas: grid.DefaultCanvas(),
		Tiers:  domain.DefaultTierLimits(),
		Share:  ShareConfig{PublishPerMinute: 6, PublishBurst: 3},
	}
}

func loadWith(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	args = append([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	return load(fs, args)
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }},
		{"zero columns", func(c *Config) { c.Canvas.Columns = 0 }},
		{"missing tier", func(c *Config) { delete(c.Tiers, domain.TierPro) }},
		{"bad tier limit", func(c *Config) { c.Tiers[domain.TierFree] = domain.Limits{MaxSavedBoards: -5} }},
		{"short token key", func(c *Config) { c.Auth.TokenKeyHex = "abcd" }},
		{"zero share burst", func(c *Config) { c.Share.PublishBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := loadWith(t)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Editor.SessionTTL)
	assert.Equal(t, grid.DefaultCanvas(), cfg.Canvas)
	assert.Equal(t, domain.DefaultTierLimits(), cfg.Tiers)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CANVAS_COLUMNS", "16")

	cfg, err := loadWith(t, "-port", "9100")
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 16, cfg.Canvas.Columns)
}

func TestLoad_TierOverrides(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("TIER_FREE_MAX_BOARDS", "3")
	t.Setenv("TIER_FREE_CAN_SHARE", "yes")

	cfg, err := loadWith(t)
	require.NoError(t, err)

	assert.Equal(t, domain.Limits{MaxSavedBoards: 3, CanShare: true}, cfg.Tiers[domain.TierFree])
	assert.Equal(t, domain.Unlimited, cfg.Tiers[domain.TierStudio].MaxSavedBoards)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("EDITOR_SESSION_TTL", "soon")

	_, err := loadWith(t)
	assert.ErrorContains(t, err, "editor_session_ttl")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nVB_TEST_A=one\nVB_TEST_B=\"two words\"\n\nVB_TEST_C=keep\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("VB_TEST_A", "")
	t.Setenv("VB_TEST_B", "")
	t.Setenv("VB_TEST_C", "preset")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "one", os.Getenv("VB_TEST_A"))
	assert.Equal(t, "two words", os.Getenv("VB_TEST_B"))
	assert.Equal(t, "preset", os.Getenv("VB_TEST_C"))
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT_A_PAIR\n"), 0o600))
	assert.ErrorContains(t, loadEnvFile(path), "line 1")
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = expandPath("~/boards", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "boards"), got)

	got, err = expandPath("relative/dir", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
