// Package config provides Viper-based configuration loading for the health simulator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig holds tick-driver settings and default stack policies.
type SimulationConfig struct {
	// TickRate is the number of simulation ticks per second.
	TickRate int `mapstructure:"tick_rate"`
	// MaxTicks stops a real-time run after this many ticks; 0 runs until cancelled.
	MaxTicks int `mapstructure:"max_ticks"`
	// UniversalRecharge is the default for stacks that leave it unset.
	UniversalRecharge bool `mapstructure:"universal_recharge"`
	// UniversalDamageReset is the default for stacks that leave it unset.
	UniversalDamageReset bool `mapstructure:"universal_damage_reset"`
	// Seed makes dice rolls reproducible; 0 uses crypto/rand.
	Seed int64 `mapstructure:"seed"`
}

// TickInterval returns the wall-clock duration of one tick.
//
// Precondition: TickRate > 0.
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// TickSeconds returns the simulated length of one tick in seconds.
//
// Precondition: TickRate > 0.
func (s SimulationConfig) TickSeconds() float64 {
	return 1 / float64(s.TickRate)
}

// ContentConfig locates stack definitions and scripts.
type ContentConfig struct {
	// StacksDir holds *.yaml stack definitions.
	StacksDir string `mapstructure:"stacks_dir"`
	// ScriptsDir holds *.lua hook scripts; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// Watch reloads stack definitions when files in StacksDir change.
	Watch bool `mapstructure:"watch"`
}

// ScriptingConfig holds Lua sandbox settings.
type ScriptingConfig struct {
	// InstructionLimit caps opcodes per hook call; 0 uses the package default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Content    ContentConfig    `mapstructure:"content"`
	Scripting  ScriptingConfig  `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
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

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.TickRate < 1 || s.TickRate > 1000 {
		errs = append(errs, fmt.Sprintf("simulation.tick_rate must be 1-1000, got %d", s.TickRate))
	}
	if s.MaxTicks < 0 {
		errs = append(errs, fmt.Sprintf("simulation.max_ticks must be >= 0, got %d", s.MaxTicks))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.StacksDir == "" {
		return errors.New("content.stacks_dir must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with HEALTH_ prefix
	v.SetEnvPrefix("HEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
// Defaults are applied for any key the instance does not set.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("simulation.tick_rate", 60)
	v.SetDefault("simulation.max_ticks", 0)
	v.SetDefault("simulation.universal_recharge", false)
	v.SetDefault("simulation.universal_damage_reset", false)
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("content.stacks_dir", "content/stacks")
	v.SetDefault("content.scripts_dir", "")
	v.SetDefault("content.watch", false)

	v.SetDefault("scripting.instruction_limit", 0)
}
