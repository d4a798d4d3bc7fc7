// Package color holds the terminal palette.
package color

import "github.com/charmbracelet/lipgloss"

// New initializes a lipgloss.Color from a string value.
func New(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

// Standard ANSI 8-color palette.
var (
	Red    = New("1")
	Green  = New("2")
	Yellow = New("3")
	Blue   = New("4")
	Purple = New("5")
	Cyan   = New("6")
	White  = New("7")
)

var (
	HiRed    = New("9")
	HiYellow = New("11")
	HiCyan   = New("14")
)

// Accents used by titles and the progress view.
var (
	Base     = New("#1e1e2e")
	Accent   = New("#cba6f7")
	Lavender = New("#b4befe")
	Peach    = New("#fab387")
	Orange   = New("#ffb703")
	Gray     = New("#808080")
)
