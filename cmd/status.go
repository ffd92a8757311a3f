package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Tracked titles by watch status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		p, err := period(a.cfg)
		if err != nil {
			return err
		}
		counts, err := a.engine.ItemsStatus(ctx, user, a.engine.Range(p))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(counts)
		}

		total := 0
		for _, c := range counts {
			total += c.Count
		}
		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("TITLES BY STATUS  %s  %s", user, periodLabel(p))))
		fmt.Println()
		for _, c := range counts {
			fmt.Printf("  %-10s %s %s\n", c.Status, cli.RenderProgressBar(c.Count, total, 24), cli.Muted(cli.FormatPercent(c.Percentage)))
		}
		fmt.Println()
		return nil
	})
}
