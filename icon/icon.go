// Package icon renders UI symbols in the variant chosen by the user.
//
// Icons can be displayed as emoji, nerd-font glyphs or plain ASCII.
package icon

import (
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
)

const (
	emoji = "emoji"
	nerd  = "nerd"
	plain = "plain"
)

// AvailableVariants returns every supported icon variant.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain}
}

// Icon identifies a symbol in the registry.
type Icon int

const (
	Fail Icon = iota
	Success
	Search
	Probe
	Play
	Source
	Favorite
	Progress
	Question
)

type iconDef struct {
	emoji string
	nerd  string
	plain string
}

var icons = map[Icon]*iconDef{
	Fail:     {emoji: "💀", nerd: "", plain: "x"},
	Success:  {emoji: "🎉", nerd: "", plain: "+"},
	Search:   {emoji: "🔍", nerd: "", plain: "?"},
	Probe:    {emoji: "📶", nerd: "", plain: "~"},
	Play:     {emoji: "▶️", nerd: "", plain: ">"},
	Source:   {emoji: "📡", nerd: "", plain: "#"},
	Favorite: {emoji: "⭐", nerd: "", plain: "*"},
	Progress: {emoji: "⏳", nerd: "", plain: "..."},
	Question: {emoji: "❓", nerd: "", plain: "?"},
}

// Get retrieves the representation for the configured variant.
func (d *iconDef) Get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	default:
		return ""
	}
}

// Get returns the rendered symbol of i.
func Get(i Icon) string {
	return icons[i].Get()
}
