package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound closes a session whose search returned nothing.
	ErrNotFound = errors.New("no match found")
	// ErrSourceNotFound is returned by ChangeSource for a source outside the matched set.
	ErrSourceNotFound = errors.New("source not found")
	// ErrMissingParams closes a session opened without a source or a title.
	ErrMissingParams = errors.New("missing source and title")
	// ErrPlayback wraps a fatal player error.
	ErrPlayback = errors.New("playback failed")
	// ErrClosed is returned by commands sent to a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNotReady is returned by commands that need a resolved source.
	ErrNotReady = errors.New("session not ready")
)

// Kind classifies player errors.
type Kind int

const (
	KindNetwork Kind = iota
	KindMedia
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindMedia:
		return "media"
	default:
		return "fatal"
	}
}

// PlayerError is reported by the player when a stream cannot be played.
type PlayerError struct {
	Kind Kind
	Err  error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *PlayerError) Unwrap() error { return e.Err }

// Action is how a session responds to a player error.
type Action int

const (
	ActionReload Action = iota
	ActionRecover
	ActionTeardown
)

// Recovery maps an error kind to the action taken for it.
func Recovery(kind Kind) Action {
	switch kind {
	case KindNetwork:
		return ActionReload
	case KindMedia:
		return ActionRecover
	default:
		return ActionTeardown
	}
}
