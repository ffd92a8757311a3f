package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/cli"
	"github.com/theirongolddev/reelstats/internal/stats"
)

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "Genres of watched titles",
	RunE:  runGenres,
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Production countries of watched titles",
	RunE:  runCountries,
}

var castCmd = &cobra.Command{
	Use:   "cast",
	Short: "Most-watched actors",
	RunE:  runCast,
}

func init() {
	rootCmd.AddCommand(genresCmd, countriesCmd, castCmd)
}

func distributionInput(a *app) (stats.DistributionInput, error) {
	user, err := userID(a.cfg)
	if err != nil {
		return stats.DistributionInput{}, err
	}
	p, err := period(a.cfg)
	if err != nil {
		return stats.DistributionInput{}, err
	}
	return stats.DistributionInput{UserID: user, Language: language(a.cfg), Period: p, Range: a.engine.Range(p)}, nil
}

const barWidth = 30

func runGenres(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		in, err := distributionInput(a)
		if err != nil {
			return err
		}
		progress("Resolving genres...")
		genres, err := a.engine.WatchedGenres(ctx, in)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(genres)
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("GENRES  %s  %s", in.UserID, periodLabel(in.Period))))
		fmt.Println()
		if len(genres) == 0 {
			fmt.Println("  No watched titles in this period.")
			fmt.Println()
			return nil
		}
		top := float64(genres[0].Count)
		for _, g := range genres {
			fmt.Println(cli.RenderHorizontalBar(fmt.Sprintf("%-18s", g.Name), float64(g.Count), top, barWidth,
				fmt.Sprintf("%d  %s", g.Count, cli.FormatPercent(g.Percentage))))
		}
		fmt.Println()
		return nil
	})
}

func runCountries(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		in, err := distributionInput(a)
		if err != nil {
			return err
		}
		progress("Resolving production countries...")
		countries, err := a.engine.WatchedCountries(ctx, in)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(countries)
		}

		rows := make([][]string, 0, len(countries))
		for _, c := range countries {
			rows = append(rows, []string{c.Name, cli.FormatNumber(int64(c.Count)), cli.FormatPercent(c.Percentage)})
		}
		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("COUNTRIES  %s  %s", in.UserID, periodLabel(in.Period))))
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Country", "Titles", "Share"},
			Rows:    rows,
		}))
		fmt.Println()
		return nil
	})
}

func runCast(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		in, err := distributionInput(a)
		if err != nil {
			return err
		}
		progress("Resolving cast...")
		cast, err := a.engine.WatchedCast(ctx, in.UserID, in.Period, in.Range)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cast)
		}

		rows := make([][]string, 0, len(cast))
		for i, c := range cast {
			rows = append(rows, []string{strconv.Itoa(i+1) + ". " + c.Name, cli.FormatNumber(int64(c.Count)), cli.FormatPercent(c.Percentage)})
		}
		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("CAST  %s  %s", in.UserID, periodLabel(in.Period))))
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Actor", "Titles", "Share"},
			Rows:    rows,
		}))
		fmt.Println()
		return nil
	})
}
