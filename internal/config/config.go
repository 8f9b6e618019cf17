package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir is the per-workspace configuration directory.
const Dir = ".gate"

// Config represents the gate configuration stored in .gate/config.json.
// Zero values are replaced by defaults on load.
type Config struct {
	Version string `json:"version"`
	DBPath  string `json:"db_path,omitempty"`

	// Rule registry override; empty uses the embedded registry.
	RulesFile         string `json:"rules_file,omitempty"`
	StrictRuleHash    bool   `json:"strict_rule_hash,omitempty"`
	MinRuleHashLength int    `json:"min_rule_hash_length,omitempty"`

	// Retry Controller
	MaxRetries int `json:"max_retries"`

	// Source-trust URL checks
	URLCheckAttempts  int `json:"url_check_attempts,omitempty"`
	URLCheckSpacingMS int `json:"url_check_spacing_ms,omitempty"`
	URLCheckTimeoutMS int `json:"url_check_timeout_ms,omitempty"`
	MaxRedirects      int `json:"max_redirects,omitempty"`

	// Conditional-pass expiry
	WarningDays int `json:"warning_days,omitempty"`

	// Asset manifest
	MinAssetCount  int `json:"min_asset_count,omitempty"`
	MinAssetWidth  int `json:"min_asset_width,omitempty"`
	MinAssetHeight int `json:"min_asset_height,omitempty"`

	// Platforms whose captions are required from APPROVED onward.
	Platforms []string `json:"platforms,omitempty"`

	// Batch and scheduling
	CheckConcurrency int    `json:"check_concurrency,omitempty"`
	SweepInterval    string `json:"sweep_interval,omitempty"`

	Telegram    TelegramConfig `json:"telegram"`
	Pushgateway string         `json:"pushgateway_url,omitempty"`
}

// TelegramConfig configures the operator notification channel. The token is
// normally supplied through TELEGRAM_BOT_TOKEN rather than written to disk.
type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Version: "1", MaxRetries: 2}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.MinRuleHashLength <= 0 {
		c.MinRuleHashLength = 8
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 2
	}
	if c.URLCheckAttempts <= 0 {
		c.URLCheckAttempts = 3
	}
	if c.URLCheckSpacingMS <= 0 {
		c.URLCheckSpacingMS = 2000
	}
	if c.URLCheckTimeoutMS <= 0 {
		c.URLCheckTimeoutMS = 5000
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.WarningDays <= 0 {
		c.WarningDays = 7
	}
	if c.MinAssetCount <= 0 {
		c.MinAssetCount = 2
	}
	if c.MinAssetWidth <= 0 {
		c.MinAssetWidth = 1024
	}
	if c.MinAssetHeight <= 0 {
		c.MinAssetHeight = 1024
	}
	if len(c.Platforms) == 0 {
		c.Platforms = []string{"INSTAGRAM", "THREADS", "BLOG"}
	}
	if c.CheckConcurrency <= 0 {
		c.CheckConcurrency = 4
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "24h"
	}
}

// URLCheckSpacing is the pause between URL check attempts.
func (c *Config) URLCheckSpacing() time.Duration {
	return time.Duration(c.URLCheckSpacingMS) * time.Millisecond
}

// URLCheckTimeout is the per-attempt URL check timeout.
func (c *Config) URLCheckTimeout() time.Duration {
	return time.Duration(c.URLCheckTimeoutMS) * time.Millisecond
}

// SweepEvery parses SweepInterval.
func (c *Config) SweepEvery() (time.Duration, error) {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid sweep_interval %q: %w", c.SweepInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("sweep_interval must be positive, got %s", d)
	}
	return d, nil
}

// LoadConfig reads .gate/config.json from the specified directory.
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, Dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Config{MaxRetries: -1}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadOrDefault loads the config from dir, falling back to defaults when the
// file does not exist. Environment overrides are applied in both cases.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	c.DBPath = GetEnv("GATE_DB_PATH", c.DBPath)
	c.RulesFile = GetEnv("GATE_RULES_FILE", c.RulesFile)
	c.MaxRetries = GetEnvInt("GATE_MAX_RETRIES", c.MaxRetries)
	c.StrictRuleHash = GetEnvBool("GATE_STRICT_RULE_HASH", c.StrictRuleHash)
	c.Telegram.BotToken = GetEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = GetEnv("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.Pushgateway = GetEnv("GATE_PUSHGATEWAY_URL", c.Pushgateway)
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	gateDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(gateDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", Dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(gateDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultDBPath returns the database location under the workspace directory.
func DefaultDBPath(dir string) string {
	return filepath.Join(dir, Dir, "gate.db")
}
