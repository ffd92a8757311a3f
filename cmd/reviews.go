package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/cli"
	"github.com/theirongolddev/reelstats/internal/stats"
)

var flagReviewsLimit int

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Best-rated reviews",
	RunE:  runReviews,
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Shows with the most watched episodes",
	RunE:  runSeries,
}

func init() {
	reviewsCmd.Flags().IntVar(&flagReviewsLimit, "limit", 0, "Max reviews (default 10)")
	rootCmd.AddCommand(reviewsCmd, seriesCmd)
}

func runReviews(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		p, err := period(a.cfg)
		if err != nil {
			return err
		}
		reviews, err := a.engine.BestReviews(ctx, stats.ReviewsInput{
			UserID:   user,
			Language: language(a.cfg),
			Limit:    flagReviewsLimit,
			Range:    a.engine.Range(p),
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(reviews)
		}

		rows := make([][]string, 0, len(reviews))
		for _, r := range reviews {
			text := []rune(strings.TrimSpace(r.Text))
			if len(text) > 40 {
				text = append(text[:37], []rune("...")...)
			}
			rows = append(rows, []string{r.Title, cli.Deref(r.Date, "-"), cli.FormatRating(r.Rating), string(text)})
		}
		fmt.Println()
		fmt.Println(cli.RenderTitle("BEST REVIEWS  " + user + "  " + periodLabel(p)))
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Title", "Released", "Rating", "Review"},
			Rows:    rows,
			Align:   "llll",
		}))
		fmt.Println()
		return nil
	})
}

func runSeries(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		series, err := a.engine.MostWatchedSeries(ctx, user, language(a.cfg))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(series)
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle("MOST WATCHED SERIES  " + user))
		fmt.Println()
		if len(series) == 0 {
			fmt.Println("  No episodes watched yet.")
			fmt.Println()
			return nil
		}
		top := float64(series[0].Episodes)
		for _, s := range series {
			fmt.Println(cli.RenderHorizontalBar(fmt.Sprintf("%-28s", s.Title), float64(s.Episodes), top, barWidth,
				cli.FormatNumber(int64(s.Episodes))+" eps"))
		}
		fmt.Println()
		return nil
	})
}
