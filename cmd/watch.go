package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/model"
)

var (
	flagMediaType string
	flagStatus    string
	flagRating    int
	flagText      string
	flagSeason    int
	flagEpisode   int
)

var watchCmd = &cobra.Command{
	Use:   "watch <tmdb-id>",
	Short: "Track a title or change its status",
	Long: "Track a title or change its status. Marking a show WATCHED records every\n" +
		"episode of its regular seasons; moving it out of WATCHED removes them.",
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <tmdb-id>",
	Short: "Stop tracking a title",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnwatch,
}

var reviewCmd = &cobra.Command{
	Use:   "review <tmdb-id>",
	Short: "Rate a title, season or episode",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop a user's cached statistics",
	RunE:  runInvalidate,
}

func init() {
	for _, c := range []*cobra.Command{watchCmd, unwatchCmd, reviewCmd} {
		c.Flags().StringVarP(&flagMediaType, "type", "t", "movie", "movie or tv")
	}
	watchCmd.Flags().StringVarP(&flagStatus, "status", "s", string(model.StatusWatched), "WATCHED, WATCHING, WATCHLIST or DROPPED")
	reviewCmd.Flags().IntVarP(&flagRating, "rating", "r", 0, "Rating from 0 to 5")
	reviewCmd.Flags().StringVar(&flagText, "text", "", "Review text")
	reviewCmd.Flags().IntVar(&flagSeason, "season", 0, "Season number (TV only)")
	reviewCmd.Flags().IntVar(&flagEpisode, "episode", 0, "Episode number, requires --season")
	_ = reviewCmd.MarkFlagRequired("rating")

	rootCmd.AddCommand(watchCmd, unwatchCmd, reviewCmd, invalidateCmd)
}

func parseTitle(arg string) (int, model.MediaType, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid tmdb id %q", arg)
	}
	switch strings.ToLower(flagMediaType) {
	case "movie":
		return id, model.MediaMovie, nil
	case "tv", "tv_show", "show":
		return id, model.MediaTV, nil
	}
	return 0, "", fmt.Errorf("invalid --type %q (want movie or tv)", flagMediaType)
}

func runWatch(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		id, mt, err := parseTitle(args[0])
		if err != nil {
			return err
		}
		if mt == model.MediaTV {
			progress("Fetching episodes...")
		}
		it, err := a.watchlist.SetStatus(ctx, user, id, mt, model.ItemStatus(strings.ToUpper(flagStatus)))
		if err != nil {
			return err
		}
		fmt.Printf("  %s %d is now %s\n", it.MediaType, it.TmdbID, it.Status)
		return nil
	})
}

func runUnwatch(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		id, mt, err := parseTitle(args[0])
		if err != nil {
			return err
		}
		found, err := a.watchlist.Remove(ctx, user, id, mt)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("  %s %d was not tracked\n", mt, id)
			return nil
		}
		fmt.Printf("  Removed %s %d\n", mt, id)
		return nil
	})
}

func runReview(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		id, mt, err := parseTitle(args[0])
		if err != nil {
			return err
		}
		r := &model.Review{UserID: user, TmdbID: id, MediaType: mt, Rating: flagRating, Text: flagText}
		if flagSeason > 0 {
			r.SeasonNumber = &flagSeason
		}
		if flagEpisode > 0 {
			r.EpisodeNumber = &flagEpisode
		}
		if err := a.watchlist.AddReview(ctx, r); err != nil {
			return err
		}
		fmt.Printf("  Saved review %s\n", r.ID)
		return nil
	})
}

func runInvalidate(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := userID(a.cfg)
		if err != nil {
			return err
		}
		if err := a.engine.InvalidateUser(ctx, user); err != nil {
			return err
		}
		fmt.Printf("  Dropped cached statistics for %s\n", user)
		return nil
	})
}
