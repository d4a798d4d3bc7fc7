// Package tui is the interactive front end: search, resolution progress and playback controls.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/source"
)

// Session is the part of *session.Handle the interface drives.
type Session interface {
	State() session.State
	Progress() <-chan progress.State
	Ready() <-chan struct{}
	Done() <-chan struct{}
	ChangeEpisode(n int) error
	ChangeSource(src, id, title string) error
	ToggleAdBlock(on bool)
	ToggleFavorite() (bool, error)
	// Measure probes sources for the source list.
	Measure(ctx context.Context, sources []*source.Result) map[string]probe.Result
	Close() error
}

// Options configure a Run.
type Options struct {
	// Params opens a session right away instead of starting with a search.
	Params mo.Option[session.Params]
	// Query prefills the search input.
	Query string
	// Prefer ranks every matched source even though a result was picked.
	Prefer bool

	// Open starts a session. Required.
	Open func(params session.Params) (Session, error)
	// Search backs the search input. Required unless Params is set.
	Search *search.Search
	// SearchDelay is the quiet period before a changed query is searched.
	SearchDelay time.Duration
	// Measured seeds the source list of the first session with measurements
	// taken before it opened.
	Measured map[string]probe.Result
}

// Run blocks until the user quits or the session ends.
func Run(options *Options) error {
	bubble := newBubble(options)
	defer bubble.shutdown()

	model, err := tea.NewProgram(bubble, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	if b, ok := model.(*statefulBubble); ok && b.lastError != nil && b.state == errorState {
		return b.lastError
	}
	return nil
}
