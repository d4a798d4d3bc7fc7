package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/query"
	"github.com/vidra-cli/vidra/source"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/util"
)

func completionQueries(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return query.SuggestMany(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("year", "y", "", "Release year used to disambiguate matches")
	searchCmd.Flags().BoolP("all", "a", false, "Print every result instead of the ones matching the title")
	searchCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	searchCmd.ValidArgsFunction = completionQueries
}

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search every source and print the entries that are the same work",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		q := strings.Join(args, " ")
		p := newPipeline()

		results, err := searchAndMatch(cmd.Context(), p, q, lo.Must(cmd.Flags().GetString("year")), !lo.Must(cmd.Flags().GetBool("all")))
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(results))
			return
		}

		if len(results) == 0 {
			cmd.Printf("%s nothing found for %s\n", icon.Get(icon.Fail), style.Fg(color.Yellow)(q))
			return
		}

		for _, r := range results {
			cmd.Println(formatResult(r))
		}
	},
}

// searchAndMatch searches q with an erasable progress line and remembers q on success.
func searchAndMatch(ctx context.Context, p *pipeline, q, year string, match bool) ([]*source.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	erase := util.PrintErasable(fmt.Sprintf("%s Searching %s...", icon.Get(icon.Search), style.Fg(color.Yellow)(q)))
	results, err := p.search.Run(ctx, q, progress.Reporter(func(s progress.State) {
		log.Debugf("search: %s %.0f%%", s.Message, s.Progress)
	}))
	erase()
	if err != nil {
		return nil, err
	}

	if err := query.Remember(q, 1); err != nil {
		log.Warn(err)
	}

	if !match {
		return results, nil
	}
	return p.matcher.MatchSameWork(source.QueryText(q, year), results), nil
}

func formatResult(r *source.Result) string {
	title := r.Title
	if r.Year != "" {
		title = fmt.Sprintf("%s (%s)", title, r.Year)
	}

	return fmt.Sprintf(
		"%s %s %s %s",
		style.Fg(color.Purple)(title),
		style.Fg(color.Cyan)(r.SourceName),
		style.Faint(util.Quantify(len(r.Episodes), "episode", "episodes")),
		style.Faint(r.Key()),
	)
}
