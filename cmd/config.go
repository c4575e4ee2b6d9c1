package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/analytics"
	cfgpkg "github.com/KaramelBytes/chainpulse/internal/config"
	"github.com/KaramelBytes/chainpulse/internal/logging"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set chainpulse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("dune_api_key: %s\n", mask(cfg.DuneAPIKey))
		fmt.Printf("dune_base_url: %s\n", cfg.DuneBaseURL)
		fmt.Printf("dune_cache_ttl_sec: %d\n", cfg.DuneCacheTTLSec)
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("default_top_n: %d\n", cfg.DefaultTopN)
		fmt.Printf("moving_average_window: %d\n", cfg.MovingAverageWindow)
		fmt.Printf("cohort_period: %s\n", cfg.CohortPeriod)
		fmt.Printf("histogram_bins: %d\n", cfg.HistogramBins)
		fmt.Printf("max_rows: %d\n", cfg.MaxRows)
		if len(cfg.DateHints) > 0 {
			fmt.Printf("date_hints: %s\n", strings.Join(cfg.DateHints, ","))
		}
		if len(cfg.AddressHints) > 0 {
			fmt.Printf("address_hints: %s\n", strings.Join(cfg.AddressHints, ","))
		}
		if len(cfg.ValueHints) > 0 {
			fmt.Printf("value_hints: %s\n", strings.Join(cfg.ValueHints, ","))
		}
		fmt.Printf("views_dir: %s\n", cfg.ViewsDir)
		fmt.Printf("server_addr: %s\n", cfg.ServerAddr)
		fmt.Printf("session_ttl_min: %d\n", cfg.SessionTTLMin)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	ints := map[string]*int{
		"dune_cache_ttl_sec":    &c.DuneCacheTTLSec,
		"http_timeout_sec":      &c.HTTPTimeoutSec,
		"retry_max_attempts":    &c.RetryMaxAttempts,
		"retry_base_delay_ms":   &c.RetryBaseDelayMs,
		"retry_max_delay_ms":    &c.RetryMaxDelayMs,
		"default_top_n":         &c.DefaultTopN,
		"moving_average_window": &c.MovingAverageWindow,
		"histogram_bins":        &c.HistogramBins,
		"max_rows":              &c.MaxRows,
		"session_ttl_min":       &c.SessionTTLMin,
	}
	if dst, ok := ints[key]; ok {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "dune_api_key":
		c.DuneAPIKey = val
	case "dune_base_url":
		c.DuneBaseURL = val
	case "cohort_period":
		p, err := analytics.ParsePeriod(val)
		if err != nil {
			return err
		}
		c.CohortPeriod = string(p)
	case "date_hints":
		c.DateHints = splitList(val)
	case "address_hints":
		c.AddressHints = splitList(val)
	case "value_hints":
		c.ValueHints = splitList(val)
	case "views_dir":
		c.ViewsDir = val
	case "server_addr":
		c.ServerAddr = val
	case "log_level":
		if !logging.ValidLevel(val) {
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error|off)", val)
		}
		c.LogLevel = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
