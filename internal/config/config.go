// Package config loads daemon configuration from an optional YAML file and
// COFFEE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config covers process level configuration.
type Config struct {
	Environment    string        `yaml:"environment"`
	LogLevel       string        `yaml:"log_level"`
	HTTPAddr       string        `yaml:"http_addr"`
	Chip           string        `yaml:"gpio_chip"`
	Pin            int           `yaml:"gpio_pin"`
	OnDuration     time.Duration `yaml:"on_duration"`
	Broker         string        `yaml:"mqtt_broker"` // empty disables MQTT
	ClientID       string        `yaml:"mqtt_client_id"`
	Heartbeat      time.Duration `yaml:"heartbeat"` // 0 disables
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Autostart      string        `yaml:"autostart"` // cron spec, empty disables
	MetricsEnabled bool          `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment:    "production",
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		Chip:           "gpiochip0",
		Pin:            21,
		OnDuration:     10 * time.Minute,
		ClientID:       "coffee-relay",
		Heartbeat:      15 * time.Minute,
		MetricsEnabled: true,
	}
}

// Environment variable names.
const (
	EnvEnvironment    = "COFFEE_ENV"
	EnvLogLevel       = "COFFEE_LOG_LEVEL"
	EnvHTTPAddr       = "COFFEE_HTTP_ADDR"
	EnvChip           = "COFFEE_GPIO_CHIP"
	EnvPin            = "COFFEE_GPIO_PIN"
	EnvOnDuration     = "COFFEE_ON_DURATION"
	EnvBroker         = "COFFEE_MQTT_BROKER"
	EnvClientID       = "COFFEE_MQTT_CLIENT_ID"
	EnvHeartbeat      = "COFFEE_HEARTBEAT"
	EnvAllowedOrigins = "COFFEE_ALLOWED_ORIGINS"
	EnvAutostart      = "COFFEE_AUTOSTART"
	EnvMetrics        = "COFFEE_METRICS"
)

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and parses the autostart spec.
func (c *Config) Validate() error {
	var errs []error
	if c.OnDuration <= 0 {
		errs = append(errs, fmt.Errorf("on_duration must be positive, got %v", c.OnDuration))
	}
	if c.Pin < 0 {
		errs = append(errs, fmt.Errorf("gpio_pin must be >= 0, got %d", c.Pin))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be >= 0, got %v", c.Heartbeat))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr must be set"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Autostart != "" {
		if _, err := cron.ParseStandard(c.Autostart); err != nil {
			errs = append(errs, fmt.Errorf("autostart %q: %w", c.Autostart, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString(&cfg.Environment, EnvEnvironment)
	setString(&cfg.LogLevel, EnvLogLevel)
	setString(&cfg.HTTPAddr, EnvHTTPAddr)
	setString(&cfg.Chip, EnvChip)
	setString(&cfg.Broker, EnvBroker)
	setString(&cfg.ClientID, EnvClientID)
	setString(&cfg.Autostart, EnvAutostart)

	if v, ok := os.LookupEnv(EnvPin); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPin, err))
		}
		cfg.Pin = n
	}
	if err := setDuration(&cfg.OnDuration, EnvOnDuration); err != nil {
		errs = append(errs, err)
	}
	if err := setDuration(&cfg.Heartbeat, EnvHeartbeat); err != nil {
		errs = append(errs, err)
	}
	if v, ok := os.LookupEnv(EnvMetrics); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvMetrics, err))
		}
		cfg.MetricsEnabled = b
	}
	if v, ok := os.LookupEnv(EnvAllowedOrigins); ok {
		cfg.AllowedOrigins = splitList(v)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
