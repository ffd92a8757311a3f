package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Problem: %v\n", err)
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    User:           %s\n", orNotSet(cfg.General.User))
	fmt.Printf("    Language:       %s\n", cfg.General.Language)
	fmt.Printf("    Default period: %s\n", cfg.General.DefaultPeriod)
	fmt.Printf("    Timezone:       %s\n", orNotSet(cfg.General.Timezone))
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Printf("    Driver: %s\n", cfg.Store.Driver)
	if cfg.Store.Driver == "postgres" {
		fmt.Println("    URL:    (set)")
	} else {
		fmt.Printf("    Path:   %s\n", cfg.Store.DatabasePath())
	}
	fmt.Println()

	fmt.Println("  [TMDB]")
	if cfg.TMDB.AccessToken != "" {
		fmt.Printf("    Access token: %s\n", config.MaskToken(cfg.TMDB.AccessToken))
	} else {
		fmt.Println("    Access token: not configured")
	}
	if cfg.TMDB.BaseURL != "" {
		fmt.Printf("    Base URL:     %s\n", cfg.TMDB.BaseURL)
	}
	fmt.Printf("    Requests/sec: %.1f\n", cfg.TMDB.RequestsPerSecond)
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Backend: %s\n", cfg.Cache.Backend)
	if cfg.Cache.Backend == "redis" {
		fmt.Printf("    Redis:   %s db %d\n", cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	}
	fmt.Printf("    Batch:   %d lookups every %s\n", cfg.Batch.Size, cfg.Batch.Delay())
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:    %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Warm every: %s\n", cfg.Daemon.WarmInterval)
	if len(cfg.Daemon.WarmUsers) > 0 {
		fmt.Printf("    Warm users: %s\n", strings.Join(cfg.Daemon.WarmUsers, ", "))
	} else {
		fmt.Println("    Warm users: everyone with tracked titles")
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `reelstats setup` to reconfigure.")
	return nil
}
