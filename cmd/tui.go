package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/tui"
	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

var flagTUIPageSize int

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the timeline interactively",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().IntVar(&flagTUIPageSize, "page-size", 0, "Months per page (default 3, max 10)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	flagQuiet = true
	return withApp(func(_ context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		theme.SetActive(a.cfg.Appearance.Theme)

		// Force TrueColor so background styling survives terminals that
		// under-report their capabilities.
		lipgloss.SetColorProfile(termenv.TrueColor)

		model := tui.NewApp(a.engine, tui.Options{
			UserID:   user,
			Language: language(a.cfg),
			PageSize: flagTUIPageSize,
		})
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}
