package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/prefer"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/source"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/tui"
	"github.com/vidra-cli/vidra/util"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringP("year", "y", "", "Release year used to disambiguate matches")
	sourcesCmd.Flags().BoolP("list", "l", false, "Print the measured sources without prompting")
	sourcesCmd.ValidArgsFunction = completionQueries
}

// sourcesCmd measures every matched source and lets the user pick the one to play.
var sourcesCmd = &cobra.Command{
	Use:   "sources <title>",
	Short: "Measure every source of a title and choose which one to play",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		q := strings.Join(args, " ")
		year := lo.Must(cmd.Flags().GetString("year"))
		p := newPipeline()

		matched, err := searchAndMatch(ctx, p, q, year, true)
		handleErr(err)
		if len(matched) == 0 {
			handleErr(fmt.Errorf("nothing found for %s", q))
		}

		erase := util.PrintErasable(fmt.Sprintf("%s Measuring %s...", icon.Get(icon.Probe), util.Quantify(len(matched), "source", "sources")))
		measured := p.preferer.Measure(ctx, matched)
		erase()

		ordered := orderByScore(matched, measured)
		labels := lo.Map(ordered, func(r *source.Result, _ int) string {
			return sourceLabel(r, measured[r.Key()])
		})

		if lo.Must(cmd.Flags().GetBool("list")) {
			for _, label := range labels {
				cmd.Println(label)
			}
			return
		}

		var index int
		handleErr(survey.AskOne(&survey.Select{
			Message: "Play from",
			Options: labels,
		}, &index))

		chosen := ordered[index]
		CheckDependencies()

		handleErr(tui.Run(&tui.Options{
			Params: mo.Some(session.Params{
				Source:      chosen.Source,
				ID:          chosen.ID,
				Title:       chosen.Title,
				Year:        chosen.Year,
				SearchTitle: q,
			}),
			Query:       q,
			Open:        p.openSession,
			Search:      p.search,
			SearchDelay: viper.GetDuration(key.SearchDebounce),
			Measured:    measured,
		}))
	},
}

// orderByScore sorts sources best first. Failed probes sort last.
func orderByScore(sources []*source.Result, measured map[string]probe.Result) []*source.Result {
	ordered := append([]*source.Result{}, sources...)
	score := func(r *source.Result) float64 {
		m, ok := measured[r.Key()]
		if !ok || m.HasError {
			return -1
		}
		return prefer.Score(m)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return score(ordered[i]) > score(ordered[j])
	})
	return ordered
}

func sourceLabel(r *source.Result, m probe.Result) string {
	name := fmt.Sprintf("%s · %s", r.SourceName, util.Quantify(len(r.Episodes), "episode", "episodes"))
	if m.HasError {
		return fmt.Sprintf("%s · %s", name, style.Fg(color.Red)("unreachable"))
	}
	return fmt.Sprintf("%s · %s · %s · %dms", name, m.Quality, m.LoadSpeed, m.PingTime)
}
