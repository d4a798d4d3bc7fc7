package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/session"
)

const refreshInterval = 500 * time.Millisecond

type (
	openedMsg   struct{ session Session }
	progressMsg struct {
		state progress.State
		ch    <-chan progress.State
	}
	progressClosedMsg struct{}
	readyMsg          struct{}
	doneMsg           struct{}
	refreshMsg        time.Time
	searchMsg         search.Outcome
	measuredMsg       struct {
		session Session
		results map[string]probe.Result
	}
	noticeMsg        string
	noticeExpiredMsg int
)

// noticeLifetime is how long a notice stays on the playing view.
const noticeLifetime = 3 * time.Second

func (b *statefulBubble) notify(text string) tea.Cmd {
	b.noticeSeq++
	b.notice = text

	seq := b.noticeSeq
	return tea.Tick(noticeLifetime, func(time.Time) tea.Msg {
		return noticeExpiredMsg(seq)
	})
}

func (b *statefulBubble) Init() tea.Cmd {
	if params, ok := b.options.Params.Get(); ok {
		return tea.Batch(b.spinnerC.Tick, b.open(params))
	}

	cmds := []tea.Cmd{textinput.Blink, b.spinnerC.Tick, b.listenSearch()}
	if query := strings.TrimSpace(b.inputC.Value()); query != "" {
		cmds = append(cmds, b.triggerSearch(query))
	}
	return tea.Batch(cmds...)
}

func (b *statefulBubble) open(params session.Params) tea.Cmd {
	return func() tea.Msg {
		s, err := b.options.Open(params)
		if err != nil {
			return err
		}
		return openedMsg{session: s}
	}
}

func (b *statefulBubble) triggerSearch(query string) tea.Cmd {
	if b.debouncer == nil {
		return nil
	}
	b.searching = true
	b.debouncer.Trigger(b.ctx, query)
	return nil
}

func (b *statefulBubble) listenSearch() tea.Cmd {
	return func() tea.Msg {
		select {
		case outcome := <-b.outcomes:
			return searchMsg(outcome)
		case <-b.ctx.Done():
			return nil
		}
	}
}

func listenProgress(ch <-chan progress.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg{state: s, ch: ch}
	}
}

func waitReady(s Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.Ready():
			return readyMsg{}
		case <-s.Done():
			return doneMsg{}
		}
	}
}

func waitDone(s Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Done()
		return doneMsg{}
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}
