// Package config loads the server configuration from a YAML file, POOLSERVER_*
// environment variables and built-in defaults.
//
// Precedence (highest first):
//  1. CLI flags, applied by main after Load
//  2. Environment variables (POOLSERVER_SERVER_PORT, POOLSERVER_LOGGING_LEVEL, ...)
//  3. Configuration file
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level accepts DEBUG, INFO, WARN, ERROR in any case; normalized to upper case.
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains the listener, pool and protocol settings.
type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host" validate:"required"`
	Port    int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Workers int    `mapstructure:"workers" yaml:"workers" validate:"gte=1,lte=4096"`

	// FileRoot is the directory file requests are resolved against.
	FileRoot string `mapstructure:"file_root" yaml:"file_root" validate:"required"`

	// Zero disables the deadline.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`

	// AcceptRate limits accepted connections per second; zero means unlimited.
	AcceptRate  float64 `mapstructure:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst int     `mapstructure:"accept_burst" yaml:"accept_burst" validate:"gte=0"`

	// RequestLog enables the coloured per-request access log.
	RequestLog bool `mapstructure:"request_log" yaml:"request_log"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load reads configuration from configPath (optional), the environment and
// defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnv registers every key so AutomaticEnv works without a config file.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"logging.level", "logging.format", "logging.output",
		"server.host", "server.port", "server.workers", "server.file_root",
		"server.read_timeout", "server.write_timeout",
		"server.accept_rate", "server.accept_burst", "server.request_log",
		"metrics.enabled", "metrics.port",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
