// Package config loads the ssm command configuration with Viper and builds
// its logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings of one ssm run.
type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	Model       ModelConfig       `mapstructure:"model"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Search      SearchConfig      `mapstructure:"search"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DataConfig points at the observed series.
type DataConfig struct {
	Path   string `mapstructure:"path"`
	Column string `mapstructure:"column"`
}

// ModelConfig describes the benchmark regression fitted to the data.
type ModelConfig struct {
	Lags          int    `mapstructure:"lags"`
	Deterministic string `mapstructure:"deterministic"`
	Residuals     string `mapstructure:"residuals"`
}

// DiagnosticsConfig holds the parameters of the residual tests. W = 0 uses
// the number of estimated hyperparameters and L = 0 the largest usable lag.
type DiagnosticsConfig struct {
	K     int    `mapstructure:"k"`
	W     int    `mapstructure:"w"`
	D     int    `mapstructure:"d"`
	L     int    `mapstructure:"l"`
	Title string `mapstructure:"title"`
}

// SearchConfig controls the initial value search.
type SearchConfig struct {
	MaxLoop int    `mapstructure:"max_loop"`
	Seed    int64  `mapstructure:"seed"`
	Workers int    `mapstructure:"workers"`
	Method  string `mapstructure:"method"`
	// CSV file receiving the trial log, empty to skip
	Output string `mapstructure:"output"`
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("data.path", "")
	v.SetDefault("data.column", "")
	v.SetDefault("model.lags", 0)
	v.SetDefault("model.deterministic", "const")
	v.SetDefault("model.residuals", "standardized")
	v.SetDefault("diagnostics.k", 15)
	v.SetDefault("diagnostics.w", 0)
	v.SetDefault("diagnostics.d", 0)
	v.SetDefault("diagnostics.l", 0)
	v.SetDefault("diagnostics.title", "Diagnostic tests")
	v.SetDefault("search.max_loop", 100)
	v.SetDefault("search.seed", 0)
	v.SetDefault("search.workers", 1)
	v.SetDefault("search.method", "nelder-mead")
	v.SetDefault("search.output", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ssm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Environment variable support: SSM_SEARCH_MAX_LOOP=500
	v.SetEnvPrefix("SSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

// Load decodes v into a Config and checks it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no run can use. Bounds that depend on the data
// are left to the diagnostics.
func (c *Config) Validate() error {
	switch {
	case c.Model.Lags < 0:
		return fmt.Errorf("model.lags must be >= 0, got %d", c.Model.Lags)
	case c.Diagnostics.K < 1:
		return fmt.Errorf("diagnostics.k must be >= 1, got %d", c.Diagnostics.K)
	case c.Diagnostics.W < 0:
		return fmt.Errorf("diagnostics.w must be >= 0, got %d", c.Diagnostics.W)
	case c.Diagnostics.D < 0:
		return fmt.Errorf("diagnostics.d must be >= 0, got %d", c.Diagnostics.D)
	case c.Diagnostics.L < 0:
		return fmt.Errorf("diagnostics.l must be >= 0, got %d", c.Diagnostics.L)
	case c.Search.MaxLoop < 1:
		return fmt.Errorf("search.max_loop must be >= 1, got %d", c.Search.MaxLoop)
	}
	return nil
}
