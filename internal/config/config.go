// Package config loads runtime settings from defaults, .ipeft.toml, IPEFT_*
// environment variables and bound CLI flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/cpm"
)

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Formats accepted by the format key.
var Formats = []string{"text", "pretty", "json", "gantt", "dot"}

// ToleranceConfig mirrors cpm.Tolerance for mapstructure decoding.
type ToleranceConfig struct {
	Rel float64 `mapstructure:"rel"`
	Abs float64 `mapstructure:"abs"`
}

// ViewConfig holds settings for the HTTP viewer.
type ViewConfig struct {
	Port int `mapstructure:"port"`
}

// Config holds all runtime configuration for an ipeft session.
type Config struct {
	Tolerance   ToleranceConfig `mapstructure:"tolerance"`
	Format      string          `mapstructure:"format"`
	LogLevel    string          `mapstructure:"log_level"`
	MaxParallel int             `mapstructure:"max_parallel"`
	StateDir    string          `mapstructure:"state_dir"`
	NoEdge      float64         `mapstructure:"no_edge"`
	NoColor     bool            `mapstructure:"no_color"`
	View        ViewConfig      `mapstructure:"view"`
}

// CPMTolerance converts the configured tolerance.
func (c Config) CPMTolerance() cpm.Tolerance {
	return cpm.Tolerance{Rel: c.Tolerance.Rel, Abs: c.Tolerance.Abs}
}

// Init points viper at the config file and environment. An explicit file
// must exist; otherwise .ipeft.toml is searched for in the working directory
// and $HOME, and its absence is not an error.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".ipeft")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("IPEFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	def := cpm.DefaultTolerance()
	viper.SetDefault("tolerance.rel", def.Rel)
	viper.SetDefault("tolerance.abs", def.Abs)
	viper.SetDefault("format", "text")
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("max_parallel", 4)
	viper.SetDefault("state_dir", ".ipeft")
	viper.SetDefault("no_edge", -1.0)
	viper.SetDefault("no_color", false)
	viper.SetDefault("view.port", 7171)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Tolerance.Rel < 0 || c.Tolerance.Abs < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got rel=%g abs=%g", ErrInvalid, c.Tolerance.Rel, c.Tolerance.Abs)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("%w: max_parallel must be at least 1, got %d", ErrInvalid, c.MaxParallel)
	}
	if c.View.Port < 0 || c.View.Port > 65535 {
		return fmt.Errorf("%w: view.port %d out of range", ErrInvalid, c.View.Port)
	}
	if c.NoEdge >= 0 {
		return fmt.Errorf("%w: no_edge must be negative so it cannot be a cost, got %g", ErrInvalid, c.NoEdge)
	}
	for _, f := range Formats {
		if c.Format == f {
			return nil
		}
	}
	return fmt.Errorf("%w: format %q is not one of %s", ErrInvalid, c.Format, strings.Join(Formats, ", "))
}
