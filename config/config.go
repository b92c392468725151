// Package config loads simcore settings from a YAML file, SIMCORE_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/types"
)

const (
	// EnvPrefix prefixes every environment override: SIMCORE_SIMULATION_MAX_DEPTH.
	EnvPrefix = "SIMCORE"

	configName = "simcore"
)

// Memory drivers.
const (
	DriverNone     = "none"
	DriverJSONL    = "jsonl"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains all simcore configuration settings.
type Config struct {
	// Simulation holds the per-run tunables handed to the engine.
	Simulation types.Config `mapstructure:"simulation" yaml:"simulation"`

	// Logging configures the slog handler.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Memory selects where finished runs are recorded.
	Memory MemoryConfig `mapstructure:"memory" yaml:"memory"`

	// Rules locates the rule pack.
	Rules RulesConfig `mapstructure:"rules" yaml:"rules"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "trace", "debug", "info", "warn" or "error".
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`

	// File receives log output; empty means stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// MemoryConfig configures the episode sink.
type MemoryConfig struct {
	// Driver is "none", "jsonl", "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=none jsonl sqlite postgres"`

	// Path is the JSONL file or SQLite database.
	Path string `mapstructure:"path" yaml:"path"`

	// DSN is the Postgres connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// RulesConfig locates rule packs.
type RulesConfig struct {
	// Dir is a pack directory. Empty selects the built-in forest pack.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Watch reloads the pack when its files change.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

var checker = validator.New()

// Default returns a Config with the engine defaults and no episode sink.
func Default() *Config {
	return &Config{
		Simulation: engine.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Memory: MemoryConfig{
			Driver: DriverNone,
		},
	}
}

// Load reads configuration. Order: defaults, then the file at path (or
// ./simcore.yaml and ~/.simcore/simcore.yaml when path is empty), then
// SIMCORE_* environment variables, which may come from a .env file.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".simcore"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	s := d.Simulation
	v.SetDefault("simulation.max_depth", s.MaxDepth)
	v.SetDefault("simulation.decay_rate", s.DecayRate)
	v.SetDefault("simulation.min_confidence", s.MinConfidence)
	v.SetDefault("simulation.max_active_branches", s.MaxActiveBranches)
	v.SetDefault("simulation.max_branches", s.MaxBranches)
	v.SetDefault("simulation.max_steps", s.MaxSteps)
	v.SetDefault("simulation.timeout", s.Timeout)
	v.SetDefault("simulation.policy", string(s.Policy))
	v.SetDefault("simulation.max_children", s.MaxChildren)
	v.SetDefault("simulation.sampling", string(s.Sampling))
	v.SetDefault("simulation.seed", s.Seed)
	v.SetDefault("simulation.workers", s.Workers)
	v.SetDefault("simulation.max_entities", s.MaxEntities)
	v.SetDefault("simulation.max_properties_per_entity", s.MaxPropertiesPerEntity)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetDefault("memory.driver", d.Memory.Driver)
	v.SetDefault("memory.path", d.Memory.Path)
	v.SetDefault("memory.dsn", d.Memory.DSN)

	v.SetDefault("rules.dir", d.Rules.Dir)
	v.SetDefault("rules.watch", d.Rules.Watch)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var msgs []string
	if err := checker.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q check (got %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
		}
	}

	switch c.Memory.Driver {
	case DriverJSONL, DriverSQLite:
		if c.Memory.Path == "" {
			msgs = append(msgs, fmt.Sprintf("Memory.Path is required for the %s driver", c.Memory.Driver))
		}
	case DriverPostgres:
		if c.Memory.DSN == "" {
			msgs = append(msgs, "Memory.DSN is required for the postgres driver")
		}
	}

	if len(msgs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}
