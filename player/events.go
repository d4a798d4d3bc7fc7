package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/session"
)

// observed lists the properties the listener subscribes to, by observer id.
var observed = []string{"time-pos", "duration", "pause"}

// EventListener reads mpv events on a dedicated connection and translates them.
// Property observers are bound to the connection that registered them,
// so the subscriptions are sent over the same connection that is read.
type EventListener struct {
	socketPath string
	conn       net.Conn
	out        chan<- session.Event
	stopCh     chan struct{}
	mu         sync.Mutex
	listening  bool

	tr translator
}

// NewEventListener creates a listener for the given socket.
func NewEventListener(socketPath string, out chan<- session.Event) *EventListener {
	return &EventListener{
		socketPath: socketPath,
		out:        out,
		stopCh:     make(chan struct{}),
	}
}

// Start subscribes to the observed properties and begins reading.
func (el *EventListener) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.listening {
		return nil
	}

	conn, err := net.Dial("unix", el.socketPath)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	for i, name := range observed {
		if err := writeCommand(conn, ipcCommand{Command: []any{"observe_property", i + 1, name}}); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}

	el.conn = conn
	el.listening = true
	go el.readLoop()

	log.Infof("mpv event listener started on %s (observing: %s)", el.socketPath, strings.Join(observed, ", "))
	return nil
}

// Stop terminates the listener.
func (el *EventListener) Stop() {
	el.mu.Lock()
	defer el.mu.Unlock()

	if !el.listening {
		return
	}

	close(el.stopCh)
	el.conn.Close()
	el.listening = false
}

func (el *EventListener) readLoop() {
	scanner := bufio.NewScanner(el.conn)
	for scanner.Scan() {
		for _, ev := range el.tr.translate(scanner.Bytes()) {
			select {
			case el.out <- ev:
			case <-el.stopCh:
				return
			}
		}
	}

	select {
	case <-el.stopCh:
	default:
		if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Warnf("event listener read error: %v", err)
		}
	}
}

// rawEvent is one line mpv pushes to an observing client.
type rawEvent struct {
	Event     string `json:"event"`
	Name      string `json:"name"`
	Data      any    `json:"data"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

// translator keeps the little state needed to turn mpv events into session events.
// It is only used from the read loop.
type translator struct {
	duration float64
	// loaded is set between file-loaded and the first playback-restart.
	loaded bool
}

func (t *translator) translate(line []byte) []session.Event {
	var ev rawEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.Event == "" {
		return nil
	}

	switch ev.Event {
	case "property-change":
		return t.property(ev.Name, ev.Data)
	case "start-file":
		t.duration = 0
		t.loaded = false
	case "file-loaded":
		t.loaded = true
	case "playback-restart":
		if t.loaded {
			t.loaded = false
			return []session.Event{session.CanPlay{Duration: t.duration}}
		}
	case "end-file":
		switch ev.Reason {
		case "eof":
			return []session.Event{session.Ended{}}
		case "error":
			return []session.Event{session.Failed{Err: &session.PlayerError{
				Kind: Classify(ev.FileError),
				Err:  errors.New(ev.FileError),
			}}}
		}
	}
	return nil
}

func (t *translator) property(name string, data any) []session.Event {
	switch name {
	case "duration":
		if d, ok := data.(float64); ok {
			t.duration = d
		}
	case "time-pos":
		if pos, ok := data.(float64); ok {
			return []session.Event{session.TimeUpdate{Position: pos, Duration: t.duration}}
		}
	case "pause":
		if paused, ok := data.(bool); ok {
			if paused {
				return []session.Event{session.Paused{}}
			}
			return []session.Event{session.Playing{}}
		}
	}
	return nil
}

var (
	networkErrors = []string{"loading failed", "network", "http", "timed out", "timeout", "connection", "tls"}
	mediaErrors   = []string{"unrecognized file format", "no audio or video", "decod", "demux", "format"}
)

// Classify maps an mpv end-file error string onto a recovery class.
func Classify(fileError string) session.Kind {
	e := strings.ToLower(fileError)
	for _, s := range networkErrors {
		if strings.Contains(e, s) {
			return session.KindNetwork
		}
	}
	for _, s := range mediaErrors {
		if strings.Contains(e, s) {
			return session.KindMedia
		}
	}
	return session.KindFatal
}
