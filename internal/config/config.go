// Package config provides Viper-based configuration loading for the room
// server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the public HTTP/WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AdminConfig holds the local control-plane settings.
type AdminConfig struct {
	// Socket is the unix domain socket path for administrative requests.
	Socket string `mapstructure:"socket"`
}

// RoomsConfig holds room registry maintenance settings.
type RoomsConfig struct {
	// SweepInterval is the period of the maintenance pass that reclaims
	// empty rooms.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// PresetsPath points at an optional YAML file of named game-settings
	// presets. Empty disables presets.
	PresetsPath string `mapstructure:"presets_path"`
	// IDScheme selects the room id generator: "sequence" (obfuscated
	// creation counter) or "random" (UUID-derived).
	IDScheme string `mapstructure:"id_scheme"`
}

// LivenessConfig holds the on-demand connection probe tuning.
type LivenessConfig struct {
	// ProbeGrace is how long a probe waits after pinging before it
	// inspects last-contact timestamps.
	ProbeGrace time.Duration `mapstructure:"probe_grace"`
	// ProbeTimeout is the maximum inbound silence before a connection
	// fails the probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Rooms    RoomsConfig    `mapstructure:"rooms"`
	Liveness LivenessConfig `mapstructure:"liveness"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if the configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRooms(c.Rooms); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLiveness(c.Liveness); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if a.Socket == "" {
		return errors.New("admin.socket must not be empty")
	}
	return nil
}

func validateRooms(r RoomsConfig) error {
	var errs []string
	if r.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("rooms.sweep_interval must be positive, got %s", r.SweepInterval))
	}
	if r.IDScheme != "sequence" && r.IDScheme != "random" {
		errs = append(errs, fmt.Sprintf("rooms.id_scheme must be one of [sequence, random], got %q", r.IDScheme))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLiveness(l LivenessConfig) error {
	var errs []string
	if l.ProbeGrace <= 0 {
		errs = append(errs, fmt.Sprintf("liveness.probe_grace must be positive, got %s", l.ProbeGrace))
	}
	if l.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("liveness.probe_timeout must be positive, got %s", l.ProbeTimeout))
	}
	if l.ProbeGrace > 0 && l.ProbeTimeout > 0 && l.ProbeGrace >= l.ProbeTimeout {
		errs = append(errs, "liveness.probe_grace must be shorter than liveness.probe_timeout")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with CARDHAUS_ prefix
	v.SetEnvPrefix("CARDHAUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when no file and no overrides
// are present.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7999)

	v.SetDefault("admin.socket", "cardhaus.sock")

	v.SetDefault("rooms.sweep_interval", "1m")
	v.SetDefault("rooms.presets_path", "")
	v.SetDefault("rooms.id_scheme", "sequence")

	v.SetDefault("liveness.probe_grace", "2s")
	v.SetDefault("liveness.probe_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
