package session

import (
	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

// Phase is the lifecycle stage of a session.
type Phase int

const (
	Resolving Phase = iota
	Ready
	EpisodeChanging
	SourceChanging
	Closed
)

func (p Phase) String() string {
	switch p {
	case Resolving:
		return "resolving"
	case Ready:
		return "ready"
	case EpisodeChanging:
		return "episode_changing"
	case SourceChanging:
		return "source_changing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of a session.
// Transitions return a new value; Sources and Current are shared, never mutated.
type State struct {
	Phase        Phase
	Current      *source.Result
	EpisodeIndex int
	Sources      []*source.Result
	// Resume is the offset in seconds to seek to once the player can play.
	Resume    mo.Option[float64]
	Skip      history.SkipConfig
	AdBlock   bool
	Favorited bool
	Progress  progress.State
	// Err is set when the session closed because of a failure.
	Err error
}

// Episode returns the stream URL of the current episode.
func (s State) Episode() (string, bool) {
	if s.Current == nil {
		return "", false
	}
	return s.Current.Episode(s.EpisodeIndex)
}

// HasNext reports whether an episode follows the current one.
func (s State) HasNext() bool {
	return s.Current != nil && s.EpisodeIndex < len(s.Current.Episodes)-1
}

func (s State) inRange(index int) bool {
	return s.Current != nil && index >= 0 && index < len(s.Current.Episodes)
}

func (s State) withPhase(p Phase) State {
	s.Phase = p
	return s
}

// withEpisode moves to index and drops any pending resume.
// The caller checks the range.
func (s State) withEpisode(index int) State {
	s.EpisodeIndex = index
	s.Resume = mo.None[float64]()
	return s
}

// withSource switches to target. The episode index is kept when target has it,
// otherwise it resets to 0 and the resume offset is dropped. When the index is
// kept and no resume is pending, a position past the first second becomes the resume offset.
func (s State) withSource(target *source.Result, position float64) State {
	index := s.EpisodeIndex
	if index >= len(target.Episodes) {
		index = 0
	}

	resume := s.Resume
	switch {
	case index != s.EpisodeIndex:
		resume = mo.None[float64]()
	case resume.IsAbsent() && position > 1:
		resume = mo.Some(position)
	}

	s.Current = target
	s.EpisodeIndex = index
	s.Resume = resume
	return s
}

// consumeResume returns the pending resume offset, if any, and clears it.
func (s State) consumeResume() (State, mo.Option[float64]) {
	resume := s.Resume
	s.Resume = mo.None[float64]()
	return s, resume
}
