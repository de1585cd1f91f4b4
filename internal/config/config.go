// Package config loads and validates the application configuration from
// a YAML file plus UES_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JBoggsy/ues-sub000/internal/modality"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Simulation SimulationConfig `koanf:"simulation"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"` // debug | release
}

type SimulationConfig struct {
	StartTime    string   `koanf:"start_time"` // RFC3339; empty = now
	TimeScale    float64  `koanf:"time_scale"`
	AutoAdvance  bool     `koanf:"auto_advance"`
	TickInterval string   `koanf:"tick_interval"`
	Modalities   []string `koanf:"modalities"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParsedStartTime returns the configured virtual start time, defaulting
// to the current wall time when unset.
func (c SimulationConfig) ParsedStartTime() (time.Time, error) {
	if c.StartTime == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid simulation.start_time %q: %w", c.StartTime, err)
	}
	return t, nil
}

// ParsedTickInterval returns the configured loop tick interval.
func (c SimulationConfig) ParsedTickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid simulation.tick_interval %q: %w", c.TickInterval, err)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Simulation.TimeScale <= 0 {
		return fmt.Errorf("simulation.time_scale must be > 0")
	}
	if _, err := c.Simulation.ParsedStartTime(); err != nil {
		return err
	}
	interval, err := c.Simulation.ParsedTickInterval()
	if err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be > 0")
	}
	if len(c.Simulation.Modalities) == 0 {
		return fmt.Errorf("simulation.modalities must name at least one modality")
	}
	known := make(map[string]bool)
	for _, name := range modality.Names() {
		known[name] = true
	}
	for _, name := range c.Simulation.Modalities {
		if !known[name] {
			return fmt.Errorf("unknown modality %q (available: %s)",
				name, strings.Join(modality.Names(), ", "))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}

	return nil
}

// Load parses config from defaults, then an optional file, then env
// vars, and validates the result. Env vars use the UES_ prefix with __
// as the key separator (UES_SERVER__PORT=9090).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.host":              "0.0.0.0",
		"server.port":              8080,
		"server.mode":              "release",
		"simulation.start_time":    "",
		"simulation.time_scale":    1.0,
		"simulation.auto_advance":  false,
		"simulation.tick_interval": "10ms",
		"simulation.modalities": []string{
			modality.Email, modality.SMS, modality.Chat,
			modality.Calendar, modality.Location, modality.Weather,
		},
		"logging.level": "info",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("UES_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "UES_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
