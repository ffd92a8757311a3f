package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/config"
	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupValues holds the form bindings before they are copied into the config.
type setupValues struct {
	token    string
	user     string
	language string
	period   string
	backend  string
	theme    string
}

func newSetupForm(cfg config.Config, v *setupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}

	tokenDesc := "A v4 read access token from themoviedb.org > Settings > API."
	if cfg.TMDB.AccessToken != "" {
		tokenDesc += " Current: " + config.MaskToken(cfg.TMDB.AccessToken) + " (leave blank to keep)."
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("TMDB access token").
				Description(tokenDesc).
				EchoMode(huh.EchoModePassword).
				Value(&v.token),
			huh.NewInput().
				Title("Default user").
				Description("Used when --user is not given.").
				Value(&v.user),
			huh.NewInput().
				Title("Metadata language").
				Value(&v.language).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("language is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default period").
				Options(
					huh.NewOption("All time", "all"),
					huh.NewOption("This month", "month"),
					huh.NewOption("Last month", "last_month"),
					huh.NewOption("This year", "year"),
				).
				Value(&v.period),
			huh.NewSelect[string]().
				Title("Statistics cache").
				Options(
					huh.NewOption("SQLite file", "sqlite"),
					huh.NewOption("In memory", "memory"),
					huh.NewOption("Redis", "redis"),
				).
				Value(&v.backend),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.theme),
		),
	)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.Load()

	v := setupValues{
		user:     cfg.General.User,
		language: cfg.General.Language,
		period:   cfg.General.DefaultPeriod,
		backend:  cfg.Cache.Backend,
		theme:    cfg.Appearance.Theme,
	}
	if err := newSetupForm(cfg, &v).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled.")
			return nil
		}
		return err
	}

	if tok := strings.TrimSpace(v.token); tok != "" {
		cfg.TMDB.AccessToken = tok
	}
	cfg.General.User = strings.TrimSpace(v.user)
	cfg.General.Language = strings.TrimSpace(v.language)
	cfg.General.DefaultPeriod = v.period
	cfg.Cache.Backend = v.backend
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	cfg.Appearance.Theme = v.theme

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `reelstats setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
