package tui

import (
	"fmt"
	"strings"

	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/query"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/source"
)

func (b *statefulBubble) onOpened(s Session) tea.Cmd {
	b.session = s
	b.snapshot = s.State()
	return tea.Batch(listenProgress(s.Progress()), waitReady(s))
}

func (b *statefulBubble) onReady() tea.Cmd {
	if b.session == nil {
		return nil
	}

	b.snapshot = b.session.State()
	b.status = b.snapshot.Progress
	b.refreshEpisodes()
	b.refreshSources()
	b.newState(playingState)

	return tea.Batch(waitDone(b.session), refresh())
}

func (b *statefulBubble) onDone() tea.Cmd {
	if b.session == nil {
		return nil
	}

	b.snapshot = b.session.State()
	if err := b.snapshot.Err; err != nil {
		b.session = nil
		b.raiseError(err)
		return nil
	}
	return tea.Quit
}

func (b *statefulBubble) onRefresh() tea.Cmd {
	if b.session == nil || b.state == errorState {
		return nil
	}

	previous := b.snapshot
	b.snapshot = b.session.State()
	if previous.Current != b.snapshot.Current || previous.EpisodeIndex != b.snapshot.EpisodeIndex {
		b.refreshEpisodes()
		b.refreshSources()
	}

	return refresh()
}

func (b *statefulBubble) onSearch(outcome search.Outcome) {
	if outcome.Query != strings.TrimSpace(b.inputC.Value()) {
		return
	}

	b.searching = false
	if outcome.Err != nil {
		b.notice = outcome.Err.Error()
		return
	}

	b.notice = ""
	b.resultsC.ResetSelected()
	b.resultsC.SetItems(lo.Map(outcome.Results, func(r *source.Result, _ int) list.Item {
		return resultItem(r)
	}))
}

func (b *statefulBubble) refreshEpisodes() {
	current := b.snapshot.Current
	if current == nil {
		return
	}

	items := make([]list.Item, len(current.Episodes))
	for i := range current.Episodes {
		items[i] = episodeItem(i, i == b.snapshot.EpisodeIndex)
	}
	b.episodesC.SetItems(items)
	b.episodesC.Select(b.snapshot.EpisodeIndex)
}

func (b *statefulBubble) refreshSources() {
	var currentKey string
	if b.snapshot.Current != nil {
		currentKey = b.snapshot.Current.Key()
	}

	lookup := func(k string) (probe.Result, bool) {
		r, ok := b.measured[k]
		return r, ok
	}

	b.sourcesC.SetItems(lo.Map(b.snapshot.Sources, func(r *source.Result, _ int) list.Item {
		return sourceItem(r, r.Key() == currentKey, lookup)
	}))
}

func (b *statefulBubble) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.confirm):
		if len(b.resultsC.Items()) > 0 {
			b.newState(resultsState)
		}
		return nil
	case bubblesKey.Matches(msg, b.keymap.acceptSearchSuggestion):
		suggestion, ok := b.searchSuggestion.Get()
		if !ok {
			return nil
		}
		b.inputC.SetValue(suggestion)
		b.inputC.CursorEnd()
		b.searchSuggestion = mo.None[string]()
		return b.triggerSearch(suggestion)
	case bubblesKey.Matches(msg, b.keymap.back):
		b.inputC.SetValue("")
		b.resultsC.SetItems(nil)
		b.searchSuggestion = mo.None[string]()
		return nil
	}

	before := b.inputC.Value()
	var cmd tea.Cmd
	b.inputC, cmd = b.inputC.Update(msg)

	value := strings.TrimSpace(b.inputC.Value())
	if value == strings.TrimSpace(before) || value == "" {
		return cmd
	}

	if viper.GetBool(key.SearchShowQuerySuggestions) {
		b.searchSuggestion = query.Suggest(value)
	}
	return tea.Batch(cmd, b.triggerSearch(value))
}

func (b *statefulBubble) handleResultsKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(msg, b.keymap.back):
		b.previousState()
		return nil
	case bubblesKey.Matches(msg, b.keymap.confirm):
		item, ok := b.resultsC.SelectedItem().(*listItem)
		if !ok {
			return nil
		}
		return b.play(item.internal.(*source.Result))
	}

	var cmd tea.Cmd
	b.resultsC, cmd = b.resultsC.Update(msg)
	return cmd
}

// play opens a session for the chosen result, closing the previous one.
func (b *statefulBubble) play(r *source.Result) tea.Cmd {
	searched := strings.TrimSpace(b.inputC.Value())
	if err := query.Remember(searched, 1); err != nil {
		log.Warn(err)
	}

	if b.session != nil {
		_ = b.session.Close()
		b.session = nil
	}

	b.status = progress.State{}
	b.measured = nil
	b.notice = ""
	b.newState(resolvingState)

	return tea.Batch(b.spinnerC.Tick, b.open(session.Params{
		Source:      r.Source,
		ID:          r.ID,
		Title:       r.Title,
		Year:        r.Year,
		SearchTitle: searched,
		Prefer:      b.options.Prefer,
	}))
}

func (b *statefulBubble) handleResolvingKey(msg tea.KeyMsg) tea.Cmd {
	if bubblesKey.Matches(msg, b.keymap.quit) || bubblesKey.Matches(msg, b.keymap.back) {
		return tea.Quit
	}
	return nil
}

func (b *statefulBubble) handlePlayingKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(msg, b.keymap.nextEp):
		return b.changeEpisode(b.snapshot.EpisodeIndex + 1)
	case bubblesKey.Matches(msg, b.keymap.prevEp):
		return b.changeEpisode(b.snapshot.EpisodeIndex - 1)
	case bubblesKey.Matches(msg, b.keymap.episodes):
		b.refreshEpisodes()
		b.newState(episodesState)
	case bubblesKey.Matches(msg, b.keymap.sources):
		b.refreshSources()
		b.newState(sourcesState)
		return b.measure()
	case bubblesKey.Matches(msg, b.keymap.adBlock):
		on := !b.snapshot.AdBlock
		b.session.ToggleAdBlock(on)
		b.snapshot.AdBlock = on
		return b.notify(fmt.Sprintf("Ad block %s", lo.Ternary(on, "on", "off")))
	case bubblesKey.Matches(msg, b.keymap.favorite):
		s := b.session
		return func() tea.Msg {
			marked, err := s.ToggleFavorite()
			if err != nil {
				return noticeMsg(err.Error())
			}
			return noticeMsg(lo.Ternary(marked, "Added to favorites", "Removed from favorites"))
		}
	case bubblesKey.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	}
	return nil
}

func (b *statefulBubble) changeEpisode(index int) tea.Cmd {
	current := b.snapshot.Current
	if current == nil || index < 0 || index >= len(current.Episodes) {
		return b.notify("No such episode")
	}

	s := b.session
	return func() tea.Msg {
		if err := s.ChangeEpisode(index); err != nil {
			return noticeMsg(err.Error())
		}
		return noticeMsg(fmt.Sprintf("Switching to episode %d", index+1))
	}
}

func (b *statefulBubble) measure() tea.Cmd {
	if b.session == nil || b.measured != nil || len(b.snapshot.Sources) == 0 {
		return nil
	}

	s, sources, ctx := b.session, b.snapshot.Sources, b.ctx
	return func() tea.Msg {
		return measuredMsg{session: s, results: s.Measure(ctx, sources)}
	}
}

func (b *statefulBubble) handleEpisodesKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(msg, b.keymap.back):
		b.previousState()
		return nil
	case bubblesKey.Matches(msg, b.keymap.confirm):
		item, ok := b.episodesC.SelectedItem().(*listItem)
		if !ok {
			return nil
		}
		b.previousState()
		if index := item.internal.(int); index != b.snapshot.EpisodeIndex {
			return b.changeEpisode(index)
		}
		return nil
	}

	var cmd tea.Cmd
	b.episodesC, cmd = b.episodesC.Update(msg)
	return cmd
}

func (b *statefulBubble) handleSourcesKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(msg, b.keymap.back):
		b.previousState()
		return nil
	case bubblesKey.Matches(msg, b.keymap.confirm):
		item, ok := b.sourcesC.SelectedItem().(*listItem)
		if !ok {
			return nil
		}
		b.previousState()

		target := item.internal.(*source.Result)
		if b.snapshot.Current != nil && target.Key() == b.snapshot.Current.Key() {
			return nil
		}

		s := b.session
		return func() tea.Msg {
			if err := s.ChangeSource(target.Source, target.ID, target.Title); err != nil {
				return noticeMsg(err.Error())
			}
			return noticeMsg("Switching to " + target.SourceName)
		}
	}

	var cmd tea.Cmd
	b.sourcesC, cmd = b.sourcesC.Update(msg)
	return cmd
}

func (b *statefulBubble) handleErrorKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(msg, b.keymap.back):
		if b.statesHistory.Len() == 0 {
			return tea.Quit
		}
		b.previousState()
	}
	return nil
}
