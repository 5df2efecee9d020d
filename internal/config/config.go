package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammedgqudah/ff/pkg/devicemapper"
	"github.com/mohammedgqudah/ff/pkg/pagemap"
	"github.com/spf13/viper"
)

// Config holds the settings shared by every ff command
type Config struct {
	// LogLevel is one of debug, info, warn, error (default: warn)
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// LogFormat is console or json (default: console)
	LogFormat string `json:"log_format" yaml:"log_format" mapstructure:"log_format"`

	// PageMapPath is the page table read by page lookups
	PageMapPath string `json:"pagemap_path" yaml:"pagemap_path" mapstructure:"pagemap_path"`

	// KPageFlagsPath is the per-frame flags table
	KPageFlagsPath string `json:"kpageflags_path" yaml:"kpageflags_path" mapstructure:"kpageflags_path"`

	// DMSetupPath is the dmsetup binary (default: looked up in $PATH)
	DMSetupPath string `json:"dmsetup_path" yaml:"dmsetup_path" mapstructure:"dmsetup_path"`

	// DeviceName is the device-mapper device ff manages
	DeviceName string `json:"device_name" yaml:"device_name" mapstructure:"device_name"`

	// CommandTimeout bounds each dmsetup invocation (default: 30s)
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout" mapstructure:"command_timeout"`

	// Metrics prints engine counters when a command finishes
	Metrics bool `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "warn",
		LogFormat:      "console",
		PageMapPath:    pagemap.SelfPageMapPath,
		KPageFlagsPath: pagemap.KernelPageFlagsPath,
		DMSetupPath:    devicemapper.DefaultDMSetupPath,
		DeviceName:     "ff-bench-device",
		CommandTimeout: 30 * time.Second,
	}
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	d := DefaultConfig()

	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.PageMapPath == "" {
		c.PageMapPath = d.PageMapPath
	}
	if c.KPageFlagsPath == "" {
		c.KPageFlagsPath = d.KPageFlagsPath
	}
	if c.DMSetupPath == "" {
		c.DMSetupPath = d.DMSetupPath
	}
	if c.DeviceName == "" {
		c.DeviceName = d.DeviceName
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = d.CommandTimeout
	}
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"console", "json"}
)

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs []ValidationError

	if !contains(validLogLevels, c.LogLevel) {
		errs = append(errs, ValidationError{
			Field:       "log_level",
			Message:     fmt.Sprintf("unknown log level %q", c.LogLevel),
			Suggestion:  "use one of " + strings.Join(validLogLevels, ", "),
			ValidValues: validLogLevels,
		})
	}
	if !contains(validLogFormats, c.LogFormat) {
		errs = append(errs, ValidationError{
			Field:       "log_format",
			Message:     fmt.Sprintf("unknown log format %q", c.LogFormat),
			Suggestion:  "use one of " + strings.Join(validLogFormats, ", "),
			ValidValues: validLogFormats,
		})
	}
	if c.PageMapPath == "" {
		errs = append(errs, NewValidationError("pagemap_path", "cannot be empty", "unset it to use "+pagemap.SelfPageMapPath))
	}
	if c.KPageFlagsPath == "" {
		errs = append(errs, NewValidationError("kpageflags_path", "cannot be empty", "unset it to use "+pagemap.KernelPageFlagsPath))
	}
	if c.DMSetupPath == "" {
		errs = append(errs, NewValidationError("dmsetup_path", "cannot be empty", "install lvm2 or point it at a dmsetup binary"))
	}
	if err := devicemapper.ValidateName(c.DeviceName); err != nil {
		errs = append(errs, NewValidationError("device_name", err.Error(), "pick a name without '/' shorter than 128 bytes"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, NewValidationError("command_timeout",
			fmt.Sprintf("must be positive, got %v", c.CommandTimeout), "try 30s"))
	}

	if len(errs) > 0 {
		return ValidationErrors{Errors: errs}
	}
	return nil
}

// BindDefaults registers defaults with v so environment variables and config
// files override them key by key
func BindDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("pagemap_path", d.PageMapPath)
	v.SetDefault("kpageflags_path", d.KPageFlagsPath)
	v.SetDefault("dmsetup_path", d.DMSetupPath)
	v.SetDefault("device_name", d.DeviceName)
	v.SetDefault("command_timeout", d.CommandTimeout)
	v.SetDefault("metrics", d.Metrics)
}

// Decode builds a Config from v with defaults applied but without validating
// it
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Load builds a validated Config from v
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
