// Package config loads service configuration from command-line flags,
// environment variables, and a .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/grid"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Auth    AuthConfig
	Redis   RedisConfig
	Canvas  grid.Canvas
	Tiers   map[domain.Tier]domain.Limits
	Editor  EditorConfig
	Share   ShareConfig
	Metrics MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig locates on-disk state: the SQLite database, the share link KV
// store and the product search index all live under BasePath.
type DataConfig struct {
	BasePath string
}

// DatabasePath returns the SQLite file path.
func (d DataConfig) DatabasePath() string { return filepath.Join(d.BasePath, "visionboard.db") }

// SharesPath returns the Badger directory for share links.
func (d DataConfig) SharesPath() string { return filepath.Join(d.BasePath, "shares") }

// SearchPath returns the directory for the product search index.
func (d DataConfig) SearchPath() string { return filepath.Join(d.BasePath, "search") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// AuthConfig holds bearer token configuration. Tokens are minted by the
// external auth service with the shared PASETO v4 key.
type AuthConfig struct {
	TokenKeyHex         string
	AccessTokenDuration time.Duration
}

// RedisConfig points at the Redis instance the billing service writes
// subscription tiers into.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// EditorConfig tunes in-memory editor sessions.
type EditorConfig struct {
	SessionTTL time.Duration // Idle sessions are evicted after this long
}

// ShareConfig tunes share link publishing.
type ShareConfig struct {
	PublishPerMinute float64
	PublishBurst     int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return load(flag.CommandLine, os.Args[1:])
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for databases and indexes")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")
	redisAddr := fs.String("redis-addr", "", "Redis address for subscription tiers")
	canvasColumns := fs.String("canvas-columns", "", "Grid columns (default: 12)")
	canvasRows := fs.String("canvas-rows", "", "Grid rows (default: 10)")
	sessionTTL := fs.String("session-ttl", "", "Idle editor session lifetime (default: 2h)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			TokenKeyHex: getConfigValue("", "TOKEN_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:     getConfigValue(*redisAddr, "REDIS_ADDR", "localhost:6379"),
			Password: getConfigValue("", "REDIS_PASSWORD", ""),
			DB:       getIntConfigValue("", "REDIS_DB", 0),
		},
		Canvas: grid.Canvas{
			Width:   getFloatConfigValue("", "CANVAS_WIDTH", grid.DefaultWidth),
			Height:  getFloatConfigValue("", "CANVAS_HEIGHT", grid.DefaultHeight),
			Columns: getIntConfigValue(*canvasColumns, "CANVAS_COLUMNS", grid.DefaultColumns),
			Rows:    getIntConfigValue(*canvasRows, "CANVAS_ROWS", grid.DefaultRows),
		},
		Tiers: loadTierLimits(),
		Share: ShareConfig{
			PublishPerMinute: getFloatConfigValue("", "SHARE_PUBLISH_PER_MINUTE", 6),
			PublishBurst:     getIntConfigValue("", "SHARE_PUBLISH_BURST", 3),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolConfigValue("", "METRICS_ENABLED", true),
			Path:    getConfigValue("", "METRICS_PATH", "/metrics"),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{"", "REDIS_TIMEOUT", "2s", &cfg.Redis.Timeout},
		{*sessionTTL, "EDITOR_SESSION_TTL", "2h", &cfg.Editor.SessionTTL},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadTierLimits starts from the built-in plan table and applies
// TIER_<NAME>_MAX_BOARDS / TIER_<NAME>_CAN_SHARE overrides.
func loadTierLimits() map[domain.Tier]domain.Limits {
	tiers := domain.DefaultTierLimits()
	for tier, limits := range tiers {
		key := "TIER_" + strings.ToUpper(string(tier))
		limits.MaxSavedBoards = getIntConfigValue("", key+"_MAX_BOARDS", limits.MaxSavedBoards)
		limits.CanShare = getBoolConfigValue("", key+"_CAN_SHARE", limits.CanShare)
		tiers[tier] = limits
	}
	return tiers
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if err := c.Canvas.Validate(); err != nil {
		return fmt.Errorf("invalid canvas: %w", err)
	}

	for _, tier := range []domain.Tier{domain.TierFree, domain.TierPro, domain.TierStudio} {
		limits, ok := c.Tiers[tier]
		if !ok {
			return fmt.Errorf("missing limits for tier %q", tier)
		}
		if limits.MaxSavedBoards < domain.Unlimited {
			return fmt.Errorf("tier %q: max saved boards must be >= -1", tier)
		}
	}

	if c.Auth.TokenKeyHex != "" && len(c.Auth.TokenKeyHex) != 64 {
		return errors.New("TOKEN_KEY must be 64 hex characters")
	}

	if c.Share.PublishPerMinute <= 0 || c.Share.PublishBurst <= 0 {
		return errors.New("share publish rate and burst must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, ".visionboard"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path into the environment without
// overriding variables that are already set.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
