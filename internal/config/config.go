package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Dune Analytics
	DuneAPIKey      string `mapstructure:"dune_api_key" yaml:"dune_api_key"`
	DuneBaseURL     string `mapstructure:"dune_base_url" yaml:"dune_base_url"`
	DuneCacheTTLSec int    `mapstructure:"dune_cache_ttl_sec" yaml:"dune_cache_ttl_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Analytics defaults
	DefaultTopN         int    `mapstructure:"default_top_n" yaml:"default_top_n"`
	MovingAverageWindow int    `mapstructure:"moving_average_window" yaml:"moving_average_window"`
	CohortPeriod        string `mapstructure:"cohort_period" yaml:"cohort_period"`
	HistogramBins       int    `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	MaxRows             int    `mapstructure:"max_rows" yaml:"max_rows"`

	// Extra classifier hints appended to the built-in lists.
	DateHints    []string `mapstructure:"date_hints" yaml:"date_hints"`
	AddressHints []string `mapstructure:"address_hints" yaml:"address_hints"`
	ValueHints   []string `mapstructure:"value_hints" yaml:"value_hints"`

	ViewsDir      string `mapstructure:"views_dir" yaml:"views_dir"`
	ServerAddr    string `mapstructure:"server_addr" yaml:"server_addr"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultDir is ~/.chainpulse.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".chainpulse"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.chainpulse/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAINPULSE")
	v.AutomaticEnv()

	v.SetDefault("dune_api_key", "")
	v.SetDefault("dune_base_url", "https://api.dune.com/api/v1")
	v.SetDefault("dune_cache_ttl_sec", 3600)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Analytics defaults
	v.SetDefault("default_top_n", 10)
	v.SetDefault("moving_average_window", 7)
	v.SetDefault("cohort_period", "week")
	v.SetDefault("histogram_bins", 50)
	v.SetDefault("max_rows", 500000)
	v.SetDefault("date_hints", []string{})
	v.SetDefault("address_hints", []string{})
	v.SetDefault("value_hints", []string{})
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("session_ttl_min", 30)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DuneAPIKey == "" {
		c.DuneAPIKey = os.Getenv("DUNE_API_KEY")
	}
	if c.ViewsDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		c.ViewsDir = filepath.Join(dir, "views")
	}
	return &c, nil
}
