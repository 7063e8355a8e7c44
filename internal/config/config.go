package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Search        Search        `yaml:"search"`
	Polling       Polling       `yaml:"polling"`
	Notifications Notifications `yaml:"notifications"`
	Feeds         Feeds         `yaml:"feeds"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

// Search configures the judgment search API client.
type Search struct {
	BaseURL          string  `yaml:"base_url"`
	APITokenEnv      string  `yaml:"api_token_env"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	MaxAttempts      int     `yaml:"max_attempts"`
	RateLimitSeconds float64 `yaml:"rate_limit_seconds"`
	MaxPages         int     `yaml:"max_pages"`
}

type Polling struct {
	Enabled               bool `yaml:"enabled"`
	CycleMinutes          int  `yaml:"cycle_minutes"`
	DispatchMinutes       int  `yaml:"dispatch_minutes"`
	RequestCheckSeconds   int  `yaml:"request_check_seconds"`
	FirstPollLookbackDays int  `yaml:"first_poll_lookback_days"`
	Concurrency           int  `yaml:"concurrency"`
}

type Notifications struct {
	Email               Email  `yaml:"email"`
	Slack               Slack  `yaml:"slack"`
	MaxDeliveryAttempts int    `yaml:"max_delivery_attempts"`
	Digest              Digest `yaml:"digest"`
}

type Email struct {
	Enabled     bool     `yaml:"enabled"`
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	Username    string   `yaml:"username"`
	PasswordEnv string   `yaml:"password_env"`
	From        string   `yaml:"from"`
	Recipients  []string `yaml:"recipients"`
}

type Slack struct {
	Enabled       bool   `yaml:"enabled"`
	WebhookURLEnv string `yaml:"webhook_url_env"`
}

type Digest struct {
	Enabled bool `yaml:"enabled"`
	Hour    int  `yaml:"hour"`
}

// Feeds configures the court bulletin feed scanner.
type Feeds struct {
	Enabled       bool         `yaml:"enabled"`
	ScanHours     int          `yaml:"scan_hours"`
	FetchFullText bool         `yaml:"fetch_full_text"`
	Sources       []FeedSource `yaml:"sources"`
}

type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for lexwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "lexwatch")
}

// DataDir returns the XDG data directory for lexwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "lexwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/lexwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'lexwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Search: Search{
			BaseURL:          "https://api.indiankanoon.org",
			APITokenEnv:      "LEXWATCH_API_TOKEN",
			TimeoutSeconds:   30,
			MaxAttempts:      3,
			RateLimitSeconds: 2,
			MaxPages:         5,
		},
		Polling: Polling{
			Enabled:               true,
			CycleMinutes:          30,
			DispatchMinutes:       10,
			RequestCheckSeconds:   30,
			FirstPollLookbackDays: 4,
			Concurrency:           1,
		},
		Notifications: Notifications{
			Email: Email{
				SMTPPort:    587,
				PasswordEnv: "LEXWATCH_SMTP_PASSWORD",
			},
			Slack: Slack{
				WebhookURLEnv: "LEXWATCH_SLACK_WEBHOOK",
			},
			MaxDeliveryAttempts: 3,
			Digest:              Digest{Enabled: true, Hour: 9},
		},
		Feeds: Feeds{
			ScanHours:     6,
			FetchFullText: true,
		},
		Server:  Server{Port: 8600},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIToken resolves the search API token from the configured env var.
func (c *Config) APIToken() string {
	return os.Getenv(c.Search.APITokenEnv)
}

// SMTPPassword resolves the SMTP password from the configured env var.
func (c *Config) SMTPPassword() string {
	return os.Getenv(c.Notifications.Email.PasswordEnv)
}

// SlackWebhookURL resolves the Slack webhook URL from the configured env var.
func (c *Config) SlackWebhookURL() string {
	return os.Getenv(c.Notifications.Slack.WebhookURLEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
