package session

import (
	"context"
	"time"

	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/matcher"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/source"
)

// Store persists per-source playback state. *history.FileStore and *history.SQLiteStore implement it.
type Store interface {
	PlayRecord(ctx context.Context, key string) (history.PlayRecord, bool, error)
	SavePlayRecord(ctx context.Context, key string, record history.PlayRecord) error
	DeletePlayRecord(ctx context.Context, key string) error

	SkipConfig(ctx context.Context, key string) (history.SkipConfig, bool, error)
	SaveSkipConfig(ctx context.Context, key string, cfg history.SkipConfig) error
	DeleteSkipConfig(ctx context.Context, key string) error

	IsFavorited(ctx context.Context, key string) (bool, error)
	SaveFavorite(ctx context.Context, key string, fav history.Favorite) error
	DeleteFavorite(ctx context.Context, key string) error

	SaveInterval() time.Duration
}

// Media is what the player is asked to play.
type Media struct {
	URL     string
	Title   string
	Episode int
	// Transform is applied to every playlist of the stream before the player sees it.
	Transform manifest.Transform
}

// Player drives a concrete media player.
type Player interface {
	Load(ctx context.Context, media Media) error
	Seek(seconds float64) error
	SetPause(paused bool) error
	// Reload reloads the current stream after a network error.
	Reload() error
	// Recover resets the decoder after a media error.
	Recover() error
	Close() error
}

// Preferer picks the best of several sources. *prefer.Preferer implements it.
type Preferer interface {
	Prefer(ctx context.Context, sources []*source.Result, report progress.Reporter) *source.Result
}

// Deps are the collaborators of a session.
type Deps struct {
	Search   *search.Search
	Detailer source.Detailer
	Matcher  *matcher.Matcher
	Preferer Preferer
	Store    Store
	Player   Player
	Config   Config

	// Now is the clock used for skip throttling. Defaults to time.Now.
	Now func() time.Time
}

// Params describe what to play.
type Params struct {
	// Source and ID open a known entry directly.
	Source string
	ID     string

	Title       string
	Year        string
	SearchTitle string

	// Episode is the 0-based episode to start with.
	Episode int
	// Prefer ranks sources even though a source was requested.
	Prefer bool
}

func (p Params) direct() bool {
	return p.Source != "" && p.ID != ""
}

func (p Params) query() string {
	if p.SearchTitle != "" {
		return p.SearchTitle
	}
	return p.Title
}
