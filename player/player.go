// Package player plays session media in an external player.
// The primary engine is mpv driven over its JSON-IPC socket; playlists reach it
// through a local relay that applies the session's manifest transform.
package player

import (
	"context"
	"sync"

	"github.com/vidra-cli/vidra/session"
)

// Engine is a media player process.
type Engine interface {
	// Loadfile replaces the current file, starting at start seconds when positive.
	Loadfile(target, title string, start float64) error
	Seek(seconds float64) error
	SetPause(paused bool) error
	// Recover reinitializes the decoders of the current file.
	Recover() error
	// TimePos returns the current playback position in seconds.
	TimePos() (float64, error)
	Close() error
}

// Adapter implements session.Player on top of an Engine and a Relay.
type Adapter struct {
	engine Engine
	relay  *Relay

	mu      sync.Mutex
	current session.Media
	loaded  bool
}

// NewAdapter joins an engine to the relay its playlists go through.
func NewAdapter(engine Engine, relay *Relay) *Adapter {
	return &Adapter{engine: engine, relay: relay}
}

// Load installs the media's transform on the relay and loads it through the relay.
func (a *Adapter) Load(ctx context.Context, media session.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	a.current, a.loaded = media, true
	a.mu.Unlock()

	a.relay.SetTransform(media.Transform)
	return a.engine.Loadfile(a.relay.URL(media.URL), media.Title, 0)
}

func (a *Adapter) Seek(seconds float64) error {
	return a.engine.Seek(seconds)
}

func (a *Adapter) SetPause(paused bool) error {
	return a.engine.SetPause(paused)
}

// Reload loads the current media again at the position it had reached.
func (a *Adapter) Reload() error {
	a.mu.Lock()
	media, loaded := a.current, a.loaded
	a.mu.Unlock()

	if !loaded {
		return nil
	}

	pos, err := a.engine.TimePos()
	if err != nil {
		pos = 0
	}
	return a.engine.Loadfile(a.relay.URL(media.URL), media.Title, pos)
}

func (a *Adapter) Recover() error {
	return a.engine.Recover()
}

func (a *Adapter) Close() error {
	return a.engine.Close()
}
