// Package config loads the ddir CLI configuration.
//
// Sources, in order of precedence:
//  1. CLI flags (highest)
//  2. Environment variables (DDIR_*)
//  3. Configuration file (YAML)
//  4. Defaults (lowest)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoggingConfig controls the client's log output.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string `json:"level,omitempty" mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format,omitempty"`

	// Output is stdout, stderr, or a file path.
	Output string `json:"output,omitempty" mapstructure:"output" yaml:"output,omitempty"`
}

// Config is the ddir CLI configuration.
type Config struct {
	// URL is the directory server, e.g. ldap://ldap.example.org or
	// ldaps://ldap.example.org:10636.
	URL string `json:"url" mapstructure:"url" validate:"required" yaml:"url"`

	// BindDN is the identity used for the initial bind. Empty binds
	// anonymously.
	BindDN string `json:"bind_dn,omitempty" mapstructure:"bind_dn" yaml:"bind_dn,omitempty"`

	// BindPassword is the simple bind password. Leave empty to be
	// prompted when a bind DN is set.
	BindPassword string `json:"bind_password,omitempty" mapstructure:"bind_password" yaml:"bind_password,omitempty"`

	// StartTLS upgrades ldap:// connections before binding.
	StartTLS bool `json:"starttls,omitempty" mapstructure:"starttls" yaml:"starttls,omitempty"`

	// Insecure disables TLS certificate verification.
	Insecure bool `json:"insecure,omitempty" mapstructure:"insecure" yaml:"insecure,omitempty"`

	// Timeout is the per-operation deadline.
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout" validate:"min=0" yaml:"timeout,omitempty"`

	// Logging controls log output behavior.
	Logging LoggingConfig `json:"logging,omitempty" mapstructure:"logging" yaml:"logging,omitempty"`
}

var configValidator = validator.New()

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ddir", "config.yaml")
}

// Load reads the configuration from the given file (or the default
// location when empty), layered under DDIR_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("logging.level", "WARN")
	v.SetDefault("logging.format", "text")

	if path != "" {
		v.SetConfigFile(path)
	} else if def := DefaultPath(); def != "" {
		v.SetConfigFile(def)
	}

	v.SetEnvPrefix("DDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; flags and env may be enough.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
