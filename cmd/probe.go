package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/network"
	"github.com/vidra-cli/vidra/prefer"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/util"
)

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
}

var probeCmd = &cobra.Command{
	Use:   "probe <manifest url>",
	Short: "Measure quality, throughput and latency of one HLS stream",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		prober := probe.Default(manifest.NewHTTPFetcher(network.Client()))

		erase := util.PrintErasable(fmt.Sprintf("%s Probing...", icon.Get(icon.Probe)))
		result := prober.Measure(ctx, args[0])
		erase()

		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(result))
			return
		}

		if result.HasError {
			cmd.Printf("%s stream unreachable\n", icon.Get(icon.Fail))
			return
		}

		cmd.Println(formatProbe(result))
	},
}

func formatProbe(r probe.Result) string {
	return fmt.Sprintf(
		"%s %s  %s  %s  %s",
		icon.Get(icon.Success),
		style.Quality(r.Quality),
		style.Fg(color.Cyan)(r.LoadSpeed),
		style.Fg(color.Yellow)(fmt.Sprintf("%dms", r.PingTime)),
		style.Faint(fmt.Sprintf("score %.1f", prefer.Score(r))),
	)
}
