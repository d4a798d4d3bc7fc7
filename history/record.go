package history

import (
	"fmt"
	"time"
)

// PlayRecord is the saved playback progress of one title on one source.
type PlayRecord struct {
	Title      string `json:"title"`
	SourceName string `json:"source_name"`
	Year       string `json:"year"`
	Cover      string `json:"cover"`
	// Index is the 1-based episode number.
	Index         int `json:"index"`
	TotalEpisodes int `json:"total_episodes"`
	// PlayTime and TotalTime are in seconds.
	PlayTime  float64 `json:"play_time"`
	TotalTime float64 `json:"total_time"`
	// SaveTime is a unix timestamp in milliseconds.
	SaveTime    int64  `json:"save_time"`
	SearchTitle string `json:"search_title"`
}

func (r PlayRecord) String() string {
	return fmt.Sprintf("%s : %d / %d", r.Title, r.Index, r.TotalEpisodes)
}

// Saved returns the time the record was written.
func (r PlayRecord) Saved() time.Time {
	return time.UnixMilli(r.SaveTime)
}

// Percent returns how much of the episode was watched.
func (r PlayRecord) Percent() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return r.PlayTime / r.TotalTime * 100
}

// SkipConfig is the intro/outro skip setting of one title on one source.
type SkipConfig struct {
	Enable bool `json:"enable"`
	// IntroTime is the offset in seconds playback jumps to at the start.
	IntroTime float64 `json:"intro_time"`
	// OutroTime is negative: the episode ends OutroTime seconds before its duration.
	OutroTime float64 `json:"outro_time"`
}

// Empty reports whether the config carries nothing worth storing.
func (c SkipConfig) Empty() bool {
	return !c.Enable && c.IntroTime == 0 && c.OutroTime == 0
}

// Favorite is a bookmarked title.
type Favorite struct {
	Title         string `json:"title"`
	SourceName    string `json:"source_name"`
	Year          string `json:"year"`
	Cover         string `json:"cover"`
	TotalEpisodes int    `json:"total_episodes"`
	SaveTime      int64  `json:"save_time"`
	SearchTitle   string `json:"search_title"`
}

func (f Favorite) String() string {
	return fmt.Sprintf("%s (%s)", f.Title, f.SourceName)
}
