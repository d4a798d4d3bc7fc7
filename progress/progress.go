// Package progress carries the resolution progress reported to callers.
//
// Progress is an overall percentage split into bands: search 0-30,
// preference 35-70, detail fetch 70-90, ready 100.
package progress

import "math"

// Stage names the pipeline step a State belongs to.
type Stage string

const (
	Idle      Stage = "idle"
	Searching Stage = "searching"
	Testing   Stage = "testing"
	Analyzing Stage = "analyzing"
	Completed Stage = "completed"
	Fetching  Stage = "fetching"
	Ready     Stage = "ready"
)

// State is one progress update.
type State struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Detail   string  `json:"detail,omitempty"`

	// Set by source preference only.
	TestedSources     int    `json:"tested_sources,omitempty"`
	TotalSources      int    `json:"total_sources,omitempty"`
	CurrentSourceName string `json:"current_source_name,omitempty"`
}

// Reporter receives progress updates. A nil Reporter is valid and drops them.
type Reporter func(State)

// Report delivers s when r is non-nil.
func (r Reporter) Report(s State) {
	if r != nil {
		r(s)
	}
}

// Percent converts a byte count into a rounded 0-100 percentage.
// ok is false when the total is unknown.
func Percent(read, total int64) (p float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return math.Round(float64(read) / float64(total) * 100), true
}
