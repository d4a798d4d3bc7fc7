package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"
	"github.com/samber/lo"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/util"
)

var (
	listExtraPaddingStyle = lipgloss.NewStyle().Padding(1, 2, 1, 0)
	paddingStyle          = lipgloss.NewStyle().Padding(1, 2)
)

func (b *statefulBubble) View() string {
	switch b.state {
	case searchState:
		return b.viewSearch()
	case resultsState:
		return listExtraPaddingStyle.Render(b.resultsC.View())
	case resolvingState:
		return b.viewResolving()
	case playingState:
		return b.viewPlaying()
	case episodesState:
		return listExtraPaddingStyle.Render(b.episodesC.View())
	case sourcesState:
		return listExtraPaddingStyle.Render(b.sourcesC.View())
	case errorState:
		return b.viewError()
	default:
		return "Unknown state"
	}
}

func (b *statefulBubble) viewSearch() string {
	lines := []string{
		style.Title("Search"),
		"",
		b.inputC.View(),
	}

	if suggestion, ok := b.searchSuggestion.Get(); ok && suggestion != strings.TrimSpace(b.inputC.Value()) {
		lines = append(lines, style.Faint(fmt.Sprintf("%s %s", icon.Get(icon.Question), suggestion)))
	}

	lines = append(lines, "")
	switch {
	case b.searching:
		lines = append(lines, b.spinnerC.View()+" Searching...")
	case b.notice != "":
		lines = append(lines, style.Fg(color.Red)(b.notice))
	case len(b.resultsC.Items()) > 0:
		lines = append(lines, style.Faint(util.Quantify(len(b.resultsC.Items()), "result", "results")+" found"))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewResolving() string {
	message := b.status.Message
	if message == "" {
		message = "Starting..."
	}

	lines := []string{
		style.Title("Resolving"),
		"",
		style.Truncate(b.width)(b.spinnerC.View() + " " + message),
		"",
		b.progressC.ViewAs(b.status.Progress / 100),
	}

	if b.status.TotalSources > 0 {
		lines = append(lines, "", style.Faint(fmt.Sprintf(
			"%s %d/%d %s",
			icon.Get(icon.Probe),
			b.status.TestedSources,
			b.status.TotalSources,
			b.status.CurrentSourceName,
		)))
	}

	if b.status.Detail != "" {
		lines = append(lines, style.Truncate(b.width)(style.Faint(b.status.Detail)))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewPlaying() string {
	s := b.snapshot
	if s.Current == nil {
		return b.renderLines(true, []string{style.Title("Now Playing")})
	}

	title := s.Current.Title
	if s.Current.Year != "" {
		title = fmt.Sprintf("%s (%s)", title, s.Current.Year)
	}
	if s.Favorited {
		title += " " + icon.Get(icon.Favorite)
	}

	lines := []string{
		style.Title("Now Playing"),
		"",
		style.Truncate(b.width)(fmt.Sprintf("%s %s", icon.Get(icon.Play), style.Fg(color.Purple)(title))),
		fmt.Sprintf(
			"%s Episode %d/%d · %s",
			icon.Get(icon.Source),
			s.EpisodeIndex+1,
			len(s.Current.Episodes),
			style.Fg(color.Cyan)(s.Current.SourceName),
		),
		style.Faint("Ad block " + lo.Ternary(s.AdBlock, "on", "off")),
	}

	switch s.Phase {
	case session.EpisodeChanging:
		lines = append(lines, "", b.spinnerC.View()+" Switching episode...")
	case session.SourceChanging:
		lines = append(lines, "", b.spinnerC.View()+" Switching source...")
	}

	if b.notice != "" {
		lines = append(lines, "", style.Truncate(b.width)(style.Faint(b.notice)))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewError() string {
	errorStyle := lipgloss.NewStyle().Foreground(color.HiRed).Bold(true)
	var message string
	if b.lastError != nil {
		message = b.lastError.Error()
	}

	return b.renderLines(
		true,
		[]string{
			style.ErrorTitle("Error"),
			"",
			icon.Get(icon.Fail) + " An error occurred:",
			"",
			wrap.String(errorStyle.Render(message), b.width),
		},
	)
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}
