package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/probe"
	resolve "github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/util"
)

type statefulBubble struct {
	state         state
	statesHistory util.Stack[state]
	searching     bool

	keymap *statefulKeymap

	// components
	spinnerC  spinner.Model
	inputC    textinput.Model
	resultsC  list.Model
	episodesC list.Model
	sourcesC  list.Model
	progressC progress.Model
	helpC     help.Model

	ctx       context.Context
	cancel    context.CancelFunc
	debouncer *search.Debouncer
	outcomes  chan search.Outcome

	session  Session
	snapshot session.State
	status   resolve.State
	measured map[string]probe.Result

	searchSuggestion mo.Option[string]
	notice           string
	noticeSeq        int
	lastError        error

	width, height int
	options       *Options
}

func (b *statefulBubble) raiseError(err error) {
	b.lastError = err
	b.newState(errorState)
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}

	// Transient states are never returned to
	if !lo.Contains([]state{resolvingState, errorState}, b.state) {
		b.statesHistory.Push(b.state)
	}

	b.setState(s)
}

func (b *statefulBubble) previousState() {
	if previous, ok := b.statesHistory.Pop().Get(); ok {
		b.setState(previous)
	}
}

func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	xx, yy := listExtraPaddingStyle.GetFrameSize()

	listWidth := width - xx
	listHeight := height - yy

	for _, l := range []*list.Model{&b.resultsC, &b.episodesC, &b.sourcesC} {
		l.SetSize(listWidth, listHeight)
		l.Help.Width = listWidth
	}

	b.progressC.Width = listWidth
	b.inputC.Width = listWidth
	b.helpC.Width = listWidth

	b.width = width - x
	b.height = height - y
}

// shutdown stops background searches and closes the session, if any.
func (b *statefulBubble) shutdown() {
	b.cancel()
	if b.debouncer != nil {
		b.debouncer.Stop()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func newBubble(options *Options) *statefulBubble {
	keymap := newStatefulKeymap()
	ctx, cancel := context.WithCancel(context.Background())

	bubble := &statefulBubble{
		statesHistory: util.Stack[state]{},
		keymap:        keymap,
		ctx:           ctx,
		cancel:        cancel,
		outcomes:      make(chan search.Outcome),
		options:       options,
		measured:      options.Measured,
	}

	if options.Search != nil {
		bubble.debouncer = search.NewDebouncer(options.Search, options.SearchDelay, nil, func(o search.Outcome) {
			select {
			case bubble.outcomes <- o:
			case <-ctx.Done():
			}
		})
	}

	bubble.spinnerC = spinner.New()
	bubble.spinnerC.Spinner = spinner.Dot
	bubble.spinnerC.Style = lipgloss.NewStyle().Foreground(color.Purple)

	bubble.inputC = textinput.New()
	bubble.inputC.Placeholder = "Title to search..."
	bubble.inputC.CharLimit = 80
	bubble.inputC.Prompt = "> "
	bubble.inputC.SetValue(options.Query)
	bubble.inputC.Focus()

	bubble.progressC = progress.New(progress.WithDefaultGradient())
	bubble.helpC = help.New()

	newList := func(title, singular, plural string) list.Model {
		delegate := list.NewDefaultDelegate()
		delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(color.Purple).BorderForeground(color.Purple)
		delegate.Styles.SelectedDesc = delegate.Styles.SelectedTitle

		l := list.New(nil, delegate, 0, 0)
		l.Title = title
		l.KeyMap = keymap.forList()
		l.SetStatusBarItemName(singular, plural)
		l.SetFilteringEnabled(false)
		l.Styles.Title = lipgloss.NewStyle().Background(color.Accent).Foreground(color.Base).Padding(0, 1)
		return l
	}

	bubble.resultsC = newList("Results", "result", "results")
	bubble.episodesC = newList("Episodes", "episode", "episodes")
	bubble.sourcesC = newList("Sources", "source", "sources")

	if width, height, err := util.TerminalSize(); err == nil {
		bubble.resize(width, height)
	}

	if options.Params.IsPresent() {
		bubble.setState(resolvingState)
	} else {
		bubble.setState(searchState)
	}

	return bubble
}
