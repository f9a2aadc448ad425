// Package config loads application settings from an optional YAML file,
// DEADLINE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "DEADLINE"

// MaxAlertInterval mirrors the scheduler's limit: half of the 5 minute window.
const MaxAlertInterval = 150 * time.Second

type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type AlertsConfig struct {
	Interval        time.Duration `mapstructure:"interval" yaml:"interval"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" yaml:"delivery_timeout"`
	DigestCron      string        `mapstructure:"digest_cron" yaml:"digest_cron"`
}

type ChannelsConfig struct {
	Desktop     bool     `mapstructure:"desktop" yaml:"desktop"`
	Sound       bool     `mapstructure:"sound" yaml:"sound"`
	Command     string   `mapstructure:"command" yaml:"command"`
	CommandArgs []string `mapstructure:"command_args" yaml:"command_args"`
	WebhookURL  string   `mapstructure:"webhook_url" yaml:"webhook_url"`
	Log         bool     `mapstructure:"log" yaml:"log"`
}

type DisplayConfig struct {
	Server  string        `mapstructure:"server" yaml:"server"`
	Refresh time.Duration `mapstructure:"refresh" yaml:"refresh"`
	Reload  time.Duration `mapstructure:"reload" yaml:"reload"`
}

type Config struct {
	Addr     string         `mapstructure:"addr" yaml:"addr"`
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Alerts   AlertsConfig   `mapstructure:"alerts" yaml:"alerts"`
	Channels ChannelsConfig `mapstructure:"channels" yaml:"channels"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
}

// New returns a viper instance with every key defaulted, so that
// DEADLINE_ALERTS_INTERVAL style overrides resolve during Unmarshal.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "deadlinemaster.db")
	v.SetDefault("alerts.interval", 60*time.Second)
	v.SetDefault("alerts.workers", 4)
	v.SetDefault("alerts.queue_size", 64)
	v.SetDefault("alerts.delivery_timeout", 10*time.Second)
	v.SetDefault("alerts.digest_cron", "")
	v.SetDefault("channels.desktop", true)
	v.SetDefault("channels.sound", true)
	v.SetDefault("channels.command", "")
	v.SetDefault("channels.command_args", []string{})
	v.SetDefault("channels.webhook_url", "")
	v.SetDefault("channels.log", true)
	v.SetDefault("display.server", "http://localhost:8080")
	v.SetDefault("display.refresh", time.Second)
	v.SetDefault("display.reload", 15*time.Second)
	return v
}

// Load reads path into v when path is non-empty, then unmarshals and validates.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "sqlite", "bolt":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or bolt, got %q", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Alerts.Interval <= 0 || c.Alerts.Interval > MaxAlertInterval {
		errs = append(errs, fmt.Errorf("alerts.interval must be in (0, %s], got %s", MaxAlertInterval, c.Alerts.Interval))
	}
	if c.Alerts.Workers < 1 {
		errs = append(errs, errors.New("alerts.workers must be at least 1"))
	}
	if c.Alerts.QueueSize < 1 {
		errs = append(errs, errors.New("alerts.queue_size must be at least 1"))
	}
	if c.Alerts.DigestCron != "" {
		if _, err := cron.ParseStandard(c.Alerts.DigestCron); err != nil {
			errs = append(errs, fmt.Errorf("alerts.digest_cron: %w", err))
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Display.Refresh <= 0 || c.Display.Reload <= 0 {
		errs = append(errs, errors.New("display.refresh and display.reload must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
