package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/util"
)

// entry is one stored item listed by history and favorites.
type entry struct {
	Key   string `json:"key"`
	Label string `json:"-"`
	Saved int64  `json:"-"`
	Value any    `json:"value"`
}

// withStore opens the configured backend for the duration of fn.
func withStore(fn func(ctx context.Context, store history.Store) error) error {
	store, err := history.Default()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), store)
}

func sortedEntries(entries []entry) []entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Saved > entries[j].Saved
	})
	return entries
}

func historyEntries(ctx context.Context, store history.Store) ([]entry, error) {
	records, err := store.PlayRecords(ctx)
	if err != nil {
		return nil, err
	}

	return sortedEntries(lo.MapToSlice(records, func(k string, r history.PlayRecord) entry {
		return entry{
			Key: k,
			Label: fmt.Sprintf(
				"%s %s %s",
				style.Fg(color.Purple)(r.String()),
				style.Fg(color.Cyan)(r.SourceName),
				style.Faint(fmt.Sprintf("%s / %s", util.Timestamp(r.PlayTime), util.Timestamp(r.TotalTime))),
			),
			Saved: r.SaveTime,
			Value: r,
		}
	})), nil
}

func favoriteEntries(ctx context.Context, store history.Store) ([]entry, error) {
	favorites, err := store.Favorites(ctx)
	if err != nil {
		return nil, err
	}

	return sortedEntries(lo.MapToSlice(favorites, func(k string, f history.Favorite) entry {
		return entry{
			Key:   k,
			Label: fmt.Sprintf("%s %s", style.Fg(color.Purple)(f.String()), style.Faint(util.Quantify(f.TotalEpisodes, "episode", "episodes"))),
			Saved: f.SaveTime,
			Value: f,
		}
	})), nil
}

// storedCommand builds the list and remove subcommands of one kind of stored entry.
func storedCommand(
	use, short, noun string,
	list func(context.Context, history.Store) ([]entry, error),
	remove func(context.Context, history.Store, string) error,
) *cobra.Command {
	parent := &cobra.Command{
		Use:   use,
		Short: short,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved " + noun,
		Run: func(cmd *cobra.Command, args []string) {
			asJson := lo.Must(cmd.Flags().GetBool("json"))
			handleErr(withStore(func(ctx context.Context, store history.Store) error {
				entries, err := list(ctx, store)
				if err != nil {
					return err
				}

				if asJson {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
				}

				if len(entries) == 0 {
					cmd.Printf("No %s yet\n", noun)
					return nil
				}

				for _, e := range entries {
					cmd.Println(e.Label)
				}
				return nil
			}))
		},
	}
	listCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")

	removeCmd := &cobra.Command{
		Use:   "remove [key...]",
		Short: "Remove saved " + noun + ", prompting when no key is given",
		Run: func(cmd *cobra.Command, args []string) {
			handleErr(withStore(func(ctx context.Context, store history.Store) error {
				keys := args
				if len(keys) == 0 {
					entries, err := list(ctx, store)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						cmd.Printf("No %s yet\n", noun)
						return nil
					}

					var picked []int
					if err := survey.AskOne(&survey.MultiSelect{
						Message: "Remove",
						Options: lo.Map(entries, func(e entry, _ int) string { return e.Label }),
					}, &picked); err != nil {
						return err
					}
					keys = lo.Map(picked, func(i int, _ int) string { return entries[i].Key })
				}

				for _, k := range keys {
					if err := remove(ctx, store, k); err != nil {
						return err
					}
					cmd.Printf("%s removed %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), style.Fg(color.Purple)(k))
				}
				return nil
			}))
		},
	}

	parent.AddCommand(listCmd, removeCmd)
	return parent
}

func init() {
	rootCmd.AddCommand(storedCommand(
		"history", "Manage saved playback progress", "history",
		historyEntries,
		func(ctx context.Context, store history.Store, k string) error {
			if err := store.DeletePlayRecord(ctx, k); err != nil {
				return err
			}
			return store.DeleteSkipConfig(ctx, k)
		},
	))

	rootCmd.AddCommand(storedCommand(
		"favorites", "Manage favorite titles", "favorites",
		favoriteEntries,
		func(ctx context.Context, store history.Store, k string) error {
			return store.DeleteFavorite(ctx, k)
		},
	))
}
