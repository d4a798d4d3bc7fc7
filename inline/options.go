// Package inline resolves a title without the interactive interface and prints the outcome.
package inline

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/source"
)

type (
	SourcePicker   func([]*source.Result) *source.Result
	EpisodesFilter func([]string) ([]string, error)
)

type Options struct {
	Out   io.Writer
	Json  bool
	Query string
	Year  string
	// Rank probes the matched sources and orders them best first.
	Rank           bool
	SourcePicker   mo.Option[SourcePicker]
	EpisodesFilter mo.Option[EpisodesFilter]
}

func ParseSourcePicker(kind, value string) (SourcePicker, error) {
	switch kind {
	case "first":
		return func(results []*source.Result) *source.Result {
			if len(results) == 0 {
				return nil
			}
			return results[0]
		}, nil
	case "last":
		return func(results []*source.Result) *source.Result {
			if len(results) == 0 {
				return nil
			}
			return results[len(results)-1]
		}, nil
	case "exact":
		return func(results []*source.Result) *source.Result {
			for _, r := range results {
				if r.Source == value || strings.EqualFold(r.SourceName, value) {
					return r
				}
			}
			return nil
		}, nil
	case "index":
		idx, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid index: %s", value)
		}
		return func(results []*source.Result) *source.Result {
			if len(results) == 0 {
				return nil
			}
			return results[min(idx, uint64(len(results)-1))]
		}, nil
	default:
		return nil, fmt.Errorf("unknown picker type: %s", kind)
	}
}

// ParseEpisodesFilter parses an episode selection.
// Format: "first", "last", "all", "1-5", "@substring@" or a single index. Indexes are 0-based.
func ParseEpisodesFilter(description string) (EpisodesFilter, error) {
	switch description {
	case "first":
		return func(episodes []string) ([]string, error) {
			if len(episodes) == 0 {
				return episodes, nil
			}
			return episodes[:1], nil
		}, nil
	case "last":
		return func(episodes []string) ([]string, error) {
			if len(episodes) == 0 {
				return episodes, nil
			}
			return episodes[len(episodes)-1:], nil
		}, nil
	case "all":
		return func(episodes []string) ([]string, error) {
			return episodes, nil
		}, nil
	}

	// Range: "1-5"
	if from, to, ok := strings.Cut(description, "-"); ok {
		start, err1 := strconv.ParseUint(from, 10, 16)
		end, err2 := strconv.ParseUint(to, 10, 16)
		if err1 == nil && err2 == nil {
			return func(episodes []string) ([]string, error) {
				n := uint64(len(episodes))
				first, last := min(start, n), min(end+1, n)
				if first > last {
					return []string{}, nil
				}
				return episodes[first:last], nil
			}, nil
		}
	}

	// Substring: "@text@"
	if len(description) > 1 && strings.HasPrefix(description, "@") && strings.HasSuffix(description, "@") {
		sub := strings.ToLower(description[1 : len(description)-1])
		return func(episodes []string) ([]string, error) {
			return lo.Filter(episodes, func(e string, _ int) bool {
				return strings.Contains(strings.ToLower(e), sub)
			}), nil
		}, nil
	}

	// Single index: "5"
	if idx, err := strconv.ParseUint(description, 10, 16); err == nil {
		return func(episodes []string) ([]string, error) {
			if uint64(len(episodes)) <= idx {
				return []string{}, nil
			}
			return []string{episodes[idx]}, nil
		}, nil
	}

	return nil, fmt.Errorf("invalid episode filter: %s", description)
}
