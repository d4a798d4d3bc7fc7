// Package search runs a single query against the search collaborator and maps
// its download progress into the 0-30 band of overall resolution progress.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

// Final is the progress reported once search results are in hand.
const Final = 30

// Search wraps a searcher with a timeout and progress reporting.
// It never retries; retry policy belongs to the caller.
type Search struct {
	searcher source.Searcher
	timeout  time.Duration
}

// New returns a Search bounded by timeout. A zero timeout disables the bound.
func New(searcher source.Searcher, timeout time.Duration) *Search {
	return &Search{searcher: searcher, timeout: timeout}
}

// Default returns a Search using the configured timeout.
func Default(searcher source.Searcher) *Search {
	return New(searcher, viper.GetDuration(key.SearchTimeout))
}

// Run searches query. On failure it reports idle at 0 and returns the error.
func (s *Search) Run(ctx context.Context, query string, report progress.Reporter) ([]*source.Result, error) {
	report.Report(progress.State{
		Stage:    progress.Searching,
		Progress: 0,
		Message:  "searching sources",
		Detail:   "connecting",
	})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err := s.searcher.Search(ctx, query, func(read, total int64) {
		if p, ok := progress.Percent(read, total); ok {
			report.Report(Stage(p))
		}
	})
	if err != nil {
		log.Warnf("search %q: %s", query, err)
		report.Report(progress.State{
			Stage:   progress.Idle,
			Message: "search failed",
			Detail:  err.Error(),
		})
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	report.Report(progress.State{
		Stage:    progress.Searching,
		Progress: Final,
		Message:  "search complete",
		Detail:   fmt.Sprintf("found %d sources", len(results)),
	})

	return results, nil
}

// Stage maps a 0-100 byte percentage onto search progress.
func Stage(percent float64) progress.State {
	s := progress.State{Stage: progress.Searching}

	switch {
	case percent < 25:
		s.Progress = 5 + percent*0.2
		s.Message, s.Detail = "searching sources", "connecting"
	case percent < 50:
		s.Progress = 10 + (percent-25)*0.4
		s.Message, s.Detail = "parsing results", "processing search data"
	case percent < 75:
		s.Progress = 20 + (percent-50)*0.4
		s.Message, s.Detail = "filtering sources", "filtering matching results"
	default:
		s.Progress = Final
		s.Message, s.Detail = "search complete", "done"
	}

	return s
}
