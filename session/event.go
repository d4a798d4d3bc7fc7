package session

// Event is a notification from the player.
type Event interface {
	event()
}

// TimeUpdate reports the playback position and the stream duration in seconds.
type TimeUpdate struct {
	Position float64
	Duration float64
}

// CanPlay is sent once the loaded stream is ready to play.
type CanPlay struct {
	Duration float64
}

// Playing is sent when playback starts or resumes.
type Playing struct{}

// Paused is sent when playback pauses.
type Paused struct{}

// Ended is sent when the current episode finishes.
type Ended struct{}

// Failed is sent when the player cannot continue.
type Failed struct {
	Err *PlayerError
}

func (TimeUpdate) event() {}
func (CanPlay) event()    {}
func (Playing) event()    {}
func (Paused) event()     {}
func (Ended) event()      {}
func (Failed) event()     {}
