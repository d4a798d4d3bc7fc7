package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vidra-cli/vidra/search"
)

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case error:
		b.raiseError(msg)
		return b, nil
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	case openedMsg:
		return b, b.onOpened(msg.session)
	case progressMsg:
		b.status = msg.state
		return b, listenProgress(msg.ch)
	case progressClosedMsg:
		return b, nil
	case readyMsg:
		return b, b.onReady()
	case doneMsg:
		return b, b.onDone()
	case refreshMsg:
		return b, b.onRefresh()
	case searchMsg:
		b.onSearch(search.Outcome(msg))
		return b, b.listenSearch()
	case measuredMsg:
		// A session closed since the request measured other sources.
		if msg.session == b.session {
			b.measured = msg.results
			b.refreshSources()
		}
		return b, nil
	case noticeMsg:
		return b, b.notify(string(msg))
	case noticeExpiredMsg:
		if int(msg) == b.noticeSeq {
			b.notice = ""
		}
		return b, nil
	case tea.KeyMsg:
		return b.handleKey(msg)
	}

	// Blink and status message timers
	var cmd tea.Cmd
	switch b.state {
	case searchState:
		b.inputC, cmd = b.inputC.Update(msg)
	case resultsState:
		b.resultsC, cmd = b.resultsC.Update(msg)
	case episodesState:
		b.episodesC, cmd = b.episodesC.Update(msg)
	case sourcesState:
		b.sourcesC, cmd = b.sourcesC.Update(msg)
	}
	return b, cmd
}

func (b *statefulBubble) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, b.keymap.forceQuit) {
		return b, tea.Quit
	}

	var cmd tea.Cmd
	switch b.state {
	case searchState:
		cmd = b.handleSearchKey(msg)
	case resultsState:
		cmd = b.handleResultsKey(msg)
	case resolvingState:
		cmd = b.handleResolvingKey(msg)
	case playingState:
		cmd = b.handlePlayingKey(msg)
	case episodesState:
		cmd = b.handleEpisodesKey(msg)
	case sourcesState:
		cmd = b.handleSourcesKey(msg)
	case errorState:
		cmd = b.handleErrorKey(msg)
	}
	return b, cmd
}
