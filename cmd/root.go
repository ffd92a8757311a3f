// Package cmd implements the reelstats CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/config"
	"github.com/theirongolddev/reelstats/internal/logger"
	"github.com/theirongolddev/reelstats/internal/model"
)

var (
	flagUser     string
	flagPeriod   string
	flagLanguage string
	flagNoCache  bool
	flagQuiet    bool
	flagJSON     bool
)

var rootCmd = &cobra.Command{
	Use:           "reelstats",
	Short:         "Movie and TV watch statistics",
	Long:          "Compute watch-time, genre, country, cast and review statistics from your watch history.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHours,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "User id (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagPeriod, "period", "p", "", "all, month, last_month, year or YYYY-MM")
	rootCmd.PersistentFlags().StringVarP(&flagLanguage, "language", "l", "", "Metadata language, e.g. en-US")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Use a throwaway in-memory cache")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON instead of tables")
}

// loadConfig reads and validates the configuration and starts the logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := logger.Init(cfg.Log.Development, cfg.Log.Level); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// withApp opens the runtime for the duration of fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	a, err := openApp(ctx, cfg, flagNoCache)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// userID resolves the --user flag against the configured default.
func userID(cfg config.Config) (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	if cfg.General.User != "" {
		return cfg.General.User, nil
	}
	return "", errors.New("no user: pass --user or set general.user in the config")
}

// period resolves the --period flag against the configured default.
func period(cfg config.Config) (model.Period, error) {
	if flagPeriod != "" {
		return model.ParsePeriod(flagPeriod)
	}
	return model.ParsePeriod(cfg.General.DefaultPeriod)
}

func language(cfg config.Config) string {
	if flagLanguage != "" {
		return flagLanguage
	}
	return cfg.General.Language
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func progress(msg string) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
}
