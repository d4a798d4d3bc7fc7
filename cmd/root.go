// Package cmd implements the command-line interface for vidra.
package cmd

import (
	"fmt"
	"os"
	"strings"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/constant"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/tui"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Set the visual icon variant (e.g., nerd, emoji, plain)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	rootCmd.PersistentFlags().BoolP("write-history", "H", true, "Persist playback progress")
	lo.Must0(viper.BindPFlag(key.HistoryWrite, rootCmd.PersistentFlags().Lookup("write-history")))

	rootCmd.PersistentFlags().String("storage", "", "Storage backend for history and favorites (file, sqlite)")
	lo.Must0(viper.BindPFlag(key.StorageType, rootCmd.PersistentFlags().Lookup("storage")))

	rootCmd.Flags().StringP("query", "q", "", "Prefill the search input")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("query", completionQueries))
}

// rootCmd opens the interactive search when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   constant.Vidra,
	Short: "Find a title across video sources and play the best stream",
	Long: constant.Logo + "\n\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - Find a title across video sources and play the best stream"),
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		CheckDependencies()

		p := newPipeline()
		handleErr(tui.Run(&tui.Options{
			Query:       lo.Must(cmd.Flags().GetString("query")),
			Prefer:      viper.GetBool(key.PreferEnable),
			Open:        p.openSession,
			Search:      p.search,
			SearchDelay: viper.GetDuration(key.SearchDebounce),
		}))
	},
}

// Execute runs the command addressed by os.Args.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err != nil {
		log.Error(err)
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}
