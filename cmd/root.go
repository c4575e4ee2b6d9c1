package cmd

import (
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/KaramelBytes/chainpulse/internal/config"
	"github.com/KaramelBytes/chainpulse/internal/dune"
	"github.com/KaramelBytes/chainpulse/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "chainpulse",
	Short: "chainpulse: descriptive analytics for on-chain transaction tables",
	Long: `chainpulse ingests on-chain transaction tables (CSV/TSV/XLSX files, Dune Analytics
queries, Postgres or ClickHouse) and produces KPIs, daily activity with moving
averages, top-address rankings, cohort retention and value distributions.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.chainpulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error|off (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{LogLevel: "info"}
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if f.Changed("log-level") && logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(cfg.LogLevel, debug)
}

// newDuneClient builds a client from config, or returns nil without an API key.
func newDuneClient() *dune.Client {
	if cfg == nil || cfg.DuneAPIKey == "" {
		return nil
	}
	c := dune.NewClientWithBaseURL(
		cfg.DuneAPIKey,
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		cfg.RetryMaxAttempts,
		time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
		cfg.DuneBaseURL,
	)
	c.SetCacheTTL(time.Duration(cfg.DuneCacheTTLSec) * time.Second)
	return c
}
