// Package style provides small rendering helpers over lipgloss.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/probe"
)

// New returns an empty lipgloss.Style.
func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Colored initializes a new style with the specified foreground and background colors.
func Colored(fg, bg lipgloss.Color) lipgloss.Style {
	return New().Foreground(fg).Background(bg)
}

// Fg returns a rendering function that applies the foreground color c.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(c, "").Render(s) }
}

// Truncate returns a rendering function that constrains the output to max cells.
func Truncate(max int) func(string) string {
	return func(s string) string { return New().MaxWidth(max).Render(s) }
}

var (
	Faint  = func(s string) string { return New().Faint(true).Render(s) }
	Bold   = func(s string) string { return New().Bold(true).Render(s) }
	Italic = func(s string) string { return New().Italic(true).Render(s) }
)

// Title renders a padded banner.
var Title = func(s string) string {
	return Colored(color.Base, color.Accent).Padding(0, 1).Render(s)
}

// ErrorTitle renders a padded banner in the error colors.
var ErrorTitle = func(s string) string {
	return Colored(color.New("230"), color.Red).Padding(0, 1).Render(s)
}

// Tag returns a rendering function that wraps a string in a colored, padded block.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(fg, bg).Padding(0, 1).Render(s) }
}

// Quality colors a probe quality label by how good it is.
func Quality(q probe.Quality) string {
	label := string(q)
	switch q {
	case probe.Quality4K, probe.Quality2K, probe.Quality1080p:
		return Fg(color.Green)(label)
	case probe.Quality720p:
		return Fg(color.Yellow)(label)
	case probe.QualityUnknown:
		return Faint(label)
	default:
		return Fg(color.Red)(label)
	}
}
