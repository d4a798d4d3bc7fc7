package tui

import (
	"fmt"

	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/source"
	"github.com/vidra-cli/vidra/style"
	"github.com/vidra-cli/vidra/util"
)

// listItem is a row in one of the lists. internal carries the value it stands for.
type listItem struct {
	title       string
	description string
	internal    any
}

func (l *listItem) Title() string       { return l.title }
func (l *listItem) Description() string { return l.description }
func (l *listItem) FilterValue() string { return l.title }

func resultItem(r *source.Result) *listItem {
	title := r.Title
	if r.Year != "" {
		title = fmt.Sprintf("%s (%s)", r.Title, r.Year)
	}
	return &listItem{
		title:       title,
		description: fmt.Sprintf("%s · %s", r.SourceName, util.Quantify(len(r.Episodes), "episode", "episodes")),
		internal:    r,
	}
}

func episodeItem(index int, current bool) *listItem {
	title := fmt.Sprintf("Episode %d", index+1)
	if current {
		title = style.Fg(color.Orange)(title + " " + icon.Get(icon.Play))
	}
	return &listItem{title: title, internal: index}
}

func sourceItem(r *source.Result, current bool, measured probeLookup) *listItem {
	title := r.SourceName
	if current {
		title = style.Fg(color.Orange)(title + " " + icon.Get(icon.Play))
	}

	description := util.Quantify(len(r.Episodes), "episode", "episodes")
	if result, ok := measured(r.Key()); ok {
		if result.HasError {
			description += " · " + style.Faint("unreachable")
		} else {
			description += fmt.Sprintf(" · %s · %s · %dms", style.Quality(result.Quality), result.LoadSpeed, result.PingTime)
		}
	}

	return &listItem{title: title, description: description, internal: r}
}

// probeLookup returns the measured probe of a source key, if any.
type probeLookup func(key string) (probe.Result, bool)
