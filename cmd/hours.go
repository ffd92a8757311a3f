package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/cli"
	"github.com/theirongolddev/reelstats/internal/model"
)

var flagHourly bool

var hoursCmd = &cobra.Command{
	Use:   "hours",
	Short: "Total watch time with monthly and hourly breakdowns",
	RunE:  runHours,
}

func init() {
	hoursCmd.Flags().BoolVar(&flagHourly, "hourly", false, "Show the hour-of-day histogram")
	rootCmd.AddCommand(hoursCmd)
}

func runHours(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		p, err := period(a.cfg)
		if err != nil {
			return err
		}

		progress("Computing watch time...")
		th, err := a.engine.TotalHours(ctx, user, p, a.engine.Range(p))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(th)
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("WATCH TIME  %s  %s", user, periodLabel(p))))
		fmt.Println()

		fmt.Println(cli.RenderKV("Total", cli.Hours(cli.FormatHours(th.TotalHours))))
		fmt.Println(cli.RenderKV("Movies", cli.FormatHours(th.MovieHours)))
		fmt.Println(cli.RenderKV("Series", cli.FormatHours(th.SeriesHours)))
		if th.PeakTimeSlot != nil {
			fmt.Println(cli.RenderKV("Peak", fmt.Sprintf("%s, %02d:00 (%s views)",
				th.PeakTimeSlot.Slot, th.PeakTimeSlot.Hour, cli.FormatNumber(int64(th.PeakTimeSlot.Count)))))
		}
		if th.PercentileRank != nil {
			fmt.Println(cli.RenderKV("Percentile", fmt.Sprintf("ahead of %d%% of viewers", *th.PercentileRank)))
		}
		fmt.Println()

		if len(th.MonthlyHours) > 0 {
			values := make([]float64, len(th.MonthlyHours))
			for i, b := range th.MonthlyHours {
				values[i] = b.Hours
			}
			first, last := th.MonthlyHours[0].Month, th.MonthlyHours[len(th.MonthlyHours)-1].Month
			fmt.Printf("  %s  %s\n", cli.Muted(first), cli.Muted(last))
			fmt.Printf("  %s\n\n", cli.RenderSparkline(values))
		}

		if flagHourly {
			renderHourly(th.HourlyDistribution)
		}
		return nil
	})
}

func renderHourly(hours []model.HourCount) {
	maxCount := 0
	for _, h := range hours {
		maxCount = max(maxCount, h.Count)
	}

	maxBarWidth := 40
	for _, h := range hours {
		barLen := 0
		if maxCount > 0 {
			barLen = h.Count * maxBarWidth / maxCount
		}
		fmt.Printf("  %02d:00 │ %5s │ %s\n", h.Hour, cli.FormatNumber(int64(h.Count)), strings.Repeat("█", barLen))
	}
	fmt.Println()
}

func periodLabel(p model.Period) string {
	switch p {
	case model.PeriodAll:
		return "All time"
	case model.PeriodMonth:
		return "This month"
	case model.PeriodLastMonth:
		return "Last month"
	case model.PeriodYear:
		return "This year"
	}
	return cli.FormatYearMonth(string(p))
}
