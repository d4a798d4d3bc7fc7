package tui

type state int

const (
	searchState state = iota
	resultsState
	resolvingState
	playingState
	episodesState
	sourcesState
	errorState
)
