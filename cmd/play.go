package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/source"
	"github.com/vidra-cli/vidra/tui"
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("source", "", "Open this provider's entry directly (requires --id)")
	playCmd.Flags().String("id", "", "Provider-local id of the entry to open")
	playCmd.MarkFlagsRequiredTogether("source", "id")

	playCmd.Flags().StringP("year", "y", "", "Release year used to disambiguate matches")
	playCmd.Flags().IntP("episode", "e", 1, "Episode to start with (1-based)")
	playCmd.Flags().BoolP("prefer", "p", false, "Rank every matched source even when a source is given")
	playCmd.Flags().BoolP("continue", "c", false, "Resume the most recently watched title")

	playCmd.Flags().Bool("adblock", true, "Remove discontinuity-delimited ad segments")
	lo.Must0(viper.BindPFlag(key.PlayerAdBlock, playCmd.Flags().Lookup("adblock")))

	playCmd.ValidArgsFunction = completionQueries
}

var playCmd = &cobra.Command{
	Use:   "play [title]",
	Short: "Resolve a title and play it",
	Long: `Search every source for a title, keep the entries that are the same work,
optionally probe them to start with the best stream, and play it in mpv.

Progress, intro/outro skip settings and favorites are stored per source.`,
	Example: `  vidra play "Spirited Away" --year 2001
  vidra play --source alpha --id 42 --episode 3
  vidra play --continue`,
	Run: func(cmd *cobra.Command, args []string) {
		params, err := playParams(cmd, args)
		handleErr(err)

		CheckDependencies()

		p := newPipeline()
		handleErr(tui.Run(&tui.Options{
			Params:      mo.Some(params),
			Query:       params.Title,
			Prefer:      params.Prefer,
			Open:        p.openSession,
			Search:      p.search,
			SearchDelay: viper.GetDuration(key.SearchDebounce),
		}))
	},
}

func playParams(cmd *cobra.Command, args []string) (session.Params, error) {
	if lo.Must(cmd.Flags().GetBool("continue")) {
		return continueParams(cmd.Context())
	}

	params := session.Params{
		Source:  lo.Must(cmd.Flags().GetString("source")),
		ID:      lo.Must(cmd.Flags().GetString("id")),
		Title:   strings.TrimSpace(strings.Join(args, " ")),
		Year:    lo.Must(cmd.Flags().GetString("year")),
		Episode: max(lo.Must(cmd.Flags().GetInt("episode"))-1, 0),
		Prefer:  lo.Must(cmd.Flags().GetBool("prefer")),
	}

	if params.Title == "" && params.Source == "" {
		return params, errors.New("a title or --source and --id are required")
	}
	return params, nil
}

// continueParams reopens the entry of the most recently saved play record.
// The record restores the episode and position itself.
func continueParams(ctx context.Context) (session.Params, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := history.Default()
	if err != nil {
		return session.Params{}, err
	}
	defer store.Close()

	records, err := store.PlayRecords(ctx)
	if err != nil {
		return session.Params{}, err
	}

	k, record, ok := latestRecord(records)
	if !ok {
		return session.Params{}, errors.New("nothing to continue")
	}

	ref, ok := source.ParseKey(k)
	if !ok {
		return session.Params{}, errors.New("malformed history key: " + k)
	}

	return session.Params{
		Source:      ref.Source,
		ID:          ref.ID,
		Title:       record.Title,
		Year:        record.Year,
		SearchTitle: record.SearchTitle,
	}, nil
}

func latestRecord(records map[string]history.PlayRecord) (string, history.PlayRecord, bool) {
	if len(records) == 0 {
		return "", history.PlayRecord{}, false
	}

	latest := lo.MaxBy(lo.Entries(records), func(a, b lo.Entry[string, history.PlayRecord]) bool {
		return a.Value.SaveTime > b.Value.SaveTime
	})
	return latest.Key, latest.Value, true
}
