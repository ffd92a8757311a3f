package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/cli"
	"github.com/theirongolddev/reelstats/internal/model"
	"github.com/theirongolddev/reelstats/internal/stats"
)

var (
	flagCursor   string
	flagPageSize int
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Month-by-month activity, newest first",
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().StringVar(&flagCursor, "cursor", "", "Start at this month (YYYY-MM)")
	timelineCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "Months per page (default 3, max 10)")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		progress("Scanning months...")
		page, err := a.engine.Timeline(ctx, stats.TimelineInput{
			UserID:   user,
			Language: language(a.cfg),
			Cursor:   flagCursor,
			PageSize: flagPageSize,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(page)
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle("TIMELINE  " + user))
		fmt.Println()
		if len(page.Sections) == 0 {
			fmt.Println("  No activity found.")
			fmt.Println()
			return nil
		}
		fmt.Print(cli.RenderTable(timelineTable(page.Sections)))
		if page.NextCursor != nil {
			fmt.Printf("\n  %s\n", cli.Muted("More: reelstats timeline --cursor "+*page.NextCursor))
		}
		fmt.Println()
		return nil
	})
}

func timelineTable(sections []model.TimelineSection) cli.Table {
	rows := make([][]string, 0, len(sections))
	for _, s := range sections {
		genre, review := "-", "-"
		if s.TopGenre != nil {
			genre = s.TopGenre.Name
		}
		if s.TopReview != nil {
			review = s.TopReview.Title + " " + cli.FormatRating(s.TopReview.Rating)
		}
		rows = append(rows, []string{
			cli.FormatYearMonth(s.YearMonth),
			cli.FormatHours(s.TotalHours),
			cli.FormatHours(s.MovieHours),
			cli.FormatHours(s.SeriesHours),
			genre,
			review,
		})
	}
	return cli.Table{
		Headers: []string{"Month", "Total", "Movies", "Series", "Top genre", "Top review"},
		Rows:    rows,
		Align:   "lrrrll",
	}
}
