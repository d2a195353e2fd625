// Package config provides YAML-based configuration loading for CareSync.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level CareSync configuration, loaded from caresync.yaml.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Chat     ChatConfig     `yaml:"chat"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// APIConfig holds endpoints for the serverless backend functions.
type APIConfig struct {
	SendMessageURL string `yaml:"send_message_url"`
}

// AuthConfig holds settings for the managed authentication provider.
type AuthConfig struct {
	TokenURL string `yaml:"token_url"`
	ClientID string `yaml:"client_id"`
}

// DatabaseConfig holds connection settings for the local record cache.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// ChatConfig tunes the message synchronization engine.
type ChatConfig struct {
	PollIntervalMS int  `yaml:"poll_interval_ms"`
	PageLimit      int  `yaml:"page_limit"`
	DisablePolling bool `yaml:"disable_polling"`
}

// PollInterval returns the poll cadence as a duration.
func (c ChatConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// NotifyConfig holds care-team notification settings.
type NotifyConfig struct {
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Reminder ReminderConfig `yaml:"reminder"`
}

// SlackConfig holds Slack delivery credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord delivery credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ReminderConfig tunes the appointment reminder scheduler.
type ReminderConfig struct {
	LeadMinutes int    `yaml:"lead_minutes"`
	Cron        string `yaml:"cron"` // 5-field cron expression for reminder sweeps
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "caresync.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "caresync"
		}
	}
	if c.Chat.PollIntervalMS == 0 {
		c.Chat.PollIntervalMS = 2000
	}
	if c.Chat.PageLimit == 0 {
		c.Chat.PageLimit = 100
	}
	if c.Notify.Reminder.LeadMinutes == 0 {
		c.Notify.Reminder.LeadMinutes = 60
	}
	if c.Notify.Reminder.Cron == "" {
		c.Notify.Reminder.Cron = "*/5 * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Chat.PollIntervalMS < 0 {
		errs = append(errs, "chat.poll_interval_ms must not be negative")
	}
	if c.Chat.PageLimit < 0 {
		errs = append(errs, "chat.page_limit must not be negative")
	}
	if c.Auth.TokenURL != "" && c.Auth.ClientID == "" {
		errs = append(errs, "auth.client_id is required when auth.token_url is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
