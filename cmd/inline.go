package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/vidra-cli/vidra/filesystem"
	"github.com/vidra-cli/vidra/inline"
)

func init() {
	rootCmd.AddCommand(inlineCmd)

	inlineCmd.Flags().StringP("query", "q", "", "The title to search for")
	inlineCmd.Flags().StringP("year", "y", "", "Release year used to disambiguate matches")
	inlineCmd.Flags().StringP("source", "s", "", "Criteria for selecting one source from the matches")
	inlineCmd.Flags().StringP("episodes", "e", "", "Criteria for selecting episodes of the chosen sources")
	inlineCmd.Flags().BoolP("rank", "r", false, "Probe the matched sources and order them best first")
	inlineCmd.Flags().BoolP("json", "j", false, "Format the command output as a JSON object")
	inlineCmd.Flags().StringP("output", "o", "", "Specify a file path to write the command output")

	lo.Must0(inlineCmd.MarkFlagRequired("query"))
	lo.Must0(inlineCmd.RegisterFlagCompletionFunc("query", completionQueries))
}

// inlineCmd resolves a title without the interactive interface.
var inlineCmd = &cobra.Command{
	Use:   "inline",
	Short: "Resolve a title non-interactively and print stream URLs or JSON",
	Long: `Resolve a title for scripts: search, keep the same work, optionally rank by
probing, then print the episode stream URLs or the whole resolution as JSON.

Source selectors:
  first - first source (the best one with --rank)
  last - last source
  exact:[name] - source with this provider id or display name
  [number] - select source by index (starting from 0)

Episode selectors:
  first - first episode
  last - last episode
  all - all episodes
  [number] - select episode by index (starting from 0)
  [from]-[to] - select episodes by range
  @[substring]@ - select episodes whose URL contains substring

Without a source selector every matched source is printed.`,
	Example: `  vidra inline -q "Spirited Away" -s first -e all
  vidra inline -q "Foo" --rank --json`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			writer io.Writer = os.Stdout
			err    error
		)

		if output := lo.Must(cmd.Flags().GetString("output")); output != "" {
			file, err := filesystem.API().Create(output)
			handleErr(err)
			defer file.Close()
			writer = file
		}

		sourcePicker := mo.None[inline.SourcePicker]()
		if flag := lo.Must(cmd.Flags().GetString("source")); flag != "" {
			kind, value := parseSourceSelector(flag)
			fn, err := inline.ParseSourcePicker(kind, value)
			handleErr(err)
			sourcePicker = mo.Some(fn)
		}

		episodesFilter := mo.None[inline.EpisodesFilter]()
		if flag := lo.Must(cmd.Flags().GetString("episodes")); flag != "" {
			fn, err := inline.ParseEpisodesFilter(flag)
			handleErr(err)
			episodesFilter = mo.Some(fn)
		}

		p := newPipeline()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		err = inline.Run(ctx, inline.Deps{
			Search:   p.search,
			Matcher:  p.matcher,
			Preferer: p.preferer,
		}, &inline.Options{
			Out:            writer,
			Json:           lo.Must(cmd.Flags().GetBool("json")),
			Query:          lo.Must(cmd.Flags().GetString("query")),
			Year:           lo.Must(cmd.Flags().GetString("year")),
			Rank:           lo.Must(cmd.Flags().GetBool("rank")),
			SourcePicker:   sourcePicker,
			EpisodesFilter: episodesFilter,
		})
		handleErr(err)
	},
}

// parseSourceSelector splits "exact:name" and treats a bare number as an index.
func parseSourceSelector(flag string) (kind, value string) {
	if kind, value, ok := strings.Cut(flag, ":"); ok {
		return kind, value
	}
	if strings.Trim(flag, "0123456789") == "" {
		return "index", flag
	}
	return flag, ""
}

func init() {
	inlineCmd.AddCommand(inlineSchemaCmd)
}

// inlineSchemaCmd prints the JSON schema of the inline output.
var inlineSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate the JSON schema of the inline JSON output",
	Run: func(cmd *cobra.Command, args []string) {
		reflector := new(jsonschema.Reflector)
		reflector.Anonymous = true
		reflector.Namer = func(t reflect.Type) string {
			name := t.Name()
			switch strings.ToLower(name) {
			case "result", "output", "candidate":
				return filepath.Base(t.PkgPath()) + "." + name
			}

			return name
		}

		handleErr(json.NewEncoder(os.Stdout).Encode(reflector.Reflect(&inline.Output{})))
	},
}
