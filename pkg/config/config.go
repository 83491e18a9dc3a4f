// Package config loads the broker's configuration, layered environment
// variables over an optional YAML file over built-in defaults, and
// validates the result before a broker is allowed to start.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/statebroker/internal/bytesize"
)

// Config mirrors the broker's configuration surface: value store policy,
// transport limits, auth, sweeper/lifecycle timers, logging, and the
// advisory compression hints echoed to clients.
//
// Configuration sources, highest precedence first: environment variables
// (BROKER_ prefix), an optional YAML file, built-in defaults. Load has no
// CLI-flag layer.
type Config struct {
	DefaultTTL         time.Duration     `mapstructure:"default_ttl" yaml:"default_ttl" validate:"gte=0"`
	RequireTTL         bool              `mapstructure:"require_ttl" yaml:"require_ttl"`
	MaxItems           int               `mapstructure:"max_items" yaml:"max_items" validate:"gte=0"`
	MaxRequestSize     bytesize.ByteSize `mapstructure:"max_request_size" yaml:"max_request_size" validate:"gt=0"`
	MaxValueSize       bytesize.ByteSize `mapstructure:"max_value_size" yaml:"max_value_size" validate:"gt=0"`
	Secret             string            `mapstructure:"secret" yaml:"secret,omitempty"`
	SweeperInterval    time.Duration     `mapstructure:"sweeper_interval" yaml:"sweeper_interval" validate:"gt=0"`
	IdleTimeout        time.Duration     `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
	HeartbeatInterval  time.Duration     `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval" validate:"gte=0"`
	LogLevel           string            `mapstructure:"log_level" yaml:"log_level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	StructuredLogging  bool              `mapstructure:"structured_logging" yaml:"structured_logging"`
	Compression        bool              `mapstructure:"compression" yaml:"compression"`
	CompressionThreshold bytesize.ByteSize `mapstructure:"compression_threshold" yaml:"compression_threshold"`
	PipeID             string            `mapstructure:"pipe_id" yaml:"pipe_id,omitempty"`

	// Debug exposes the optional loopback HTTP surface (pkg/debughttp).
	Debug DebugConfig `mapstructure:"debug" yaml:"debug"`
}

// DebugConfig controls the optional loopback /metrics and /healthz mux.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// Defaults returns the configuration spec.md's table names as the broker's
// built-in defaults, before any env/file overlay is applied.
func Defaults() *Config {
	return &Config{
		DefaultTTL:           30 * time.Minute,
		RequireTTL:           true,
		MaxItems:             10_000,
		MaxRequestSize:       1 << 20,
		MaxValueSize:         256 * bytesize.KiB,
		SweeperInterval:      30 * time.Second,
		LogLevel:             "info",
		Compression:          true,
		CompressionThreshold: 1024,
		Debug: DebugConfig{
			Addr: "127.0.0.1:0",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at configPath,
// and BROKER_-prefixed environment variables, in that order of increasing
// precedence, then validates the result. An empty configPath skips the file
// layer entirely; a missing file at a non-empty configPath is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}

	// Bind every field explicitly so AutomaticEnv sees keys that have no
	// entry in a config file to key off of (viper only auto-binds keys it
	// already knows about).
	for _, key := range []string{
		"default_ttl", "require_ttl", "max_items", "max_request_size",
		"max_value_size", "secret", "sweeper_interval", "idle_timeout",
		"heartbeat_interval", "log_level", "structured_logging",
		"compression", "compression_threshold", "pipe_id",
		"debug.enabled", "debug.addr",
	} {
		_ = v.BindEnv(key)
	}
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
