package player

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vidra-cli/vidra/constant"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/where"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	quitTimeout       = 3 * time.Second
	eventBuffer       = 64
)

var errNotStarted = errors.New("mpv is not running")

// MPV drives an idle mpv process over its JSON-IPC socket.
type MPV struct {
	binary  string
	referer string

	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	listener   *EventListener
	events     chan session.Event
	mu         sync.Mutex // serializes commands
}

// NewMPV returns an engine that has not started mpv yet.
// referer is sent with every HTTP request mpv makes when set.
func NewMPV(referer string) *MPV {
	return &MPV{
		binary:  "mpv",
		referer: referer,
		exited:  make(chan struct{}),
		events:  make(chan session.Event, eventBuffer),
	}
}

// Events delivers player events translated for a session.
func (m *MPV) Events() <-chan session.Event {
	return m.events
}

// Wait returns a channel that is closed when the mpv process exits.
func (m *MPV) Wait() <-chan struct{} {
	return m.exited
}

// Socket returns the IPC socket path.
func (m *MPV) Socket() string {
	return m.socketPath
}

// Start launches mpv with an empty playlist and waits for its IPC socket.
func (m *MPV) Start(ctx context.Context) error {
	if m.socketPath != "" {
		return nil
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Errorf("generate socket name: %w", err)
	}
	socket := filepath.Join(where.Temp(), fmt.Sprintf("%s-%x.sock", constant.Vidra, randomBytes))

	m.cmd = exec.Command(m.binary, startArgs(socket, m.referer)...)
	m.cmd.SysProcAttr = ownGroup()
	m.cmd.Stdout = nil
	m.cmd.Stderr = nil
	m.cmd.Stdin = nil

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}

	go func() {
		_ = m.cmd.Wait()
		close(m.exited)
	}()

	if err := m.waitForSocket(ctx, socket); err != nil {
		select {
		case <-m.exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = killTree(m.cmd)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	m.mu.Lock()
	m.socketPath = socket
	m.mu.Unlock()

	m.listener = NewEventListener(socket, m.events)
	if err := m.listener.Start(); err != nil {
		return err
	}

	log.Infof("mpv started on %s", socket)
	return nil
}

// startArgs leaves video output, hwdec and profiles to the user's mpv.conf.
func startArgs(socket, referer string) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server=" + socket,
		"--force-window=yes",
		"--idle=yes",
		"--keep-open=no",
	}
	if referer != "" {
		args = append(args, "--referrer="+referer)
	}
	return args
}

func (m *MPV) waitForSocket(ctx context.Context, socket string) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-time.After(socketWaitDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-m.exited:
			return fmt.Errorf("mpv exited before socket was ready")
		}

		conn, err := net.Dial("unix", socket)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", socket, socketWaitRetries)
}

// Loadfile replaces the current file. A positive start begins playback there.
func (m *MPV) Loadfile(target, title string, start float64) error {
	safeURL, err := sanitizeMediaTarget(target)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	if err := m.Set("force-media-title", sanitizeTitle(title)); err != nil {
		return err
	}
	if err := m.Set("start", startOption(start)); err != nil {
		return err
	}

	_, err = m.sendCommand("loadfile", safeURL, "replace")
	return err
}

func startOption(start float64) string {
	if start <= 0 {
		return "none"
	}
	return strconv.FormatFloat(start, 'f', 3, 64)
}

// Seek moves playback to the given absolute position in seconds.
func (m *MPV) Seek(seconds float64) error {
	_, err := m.sendCommand("seek", seconds, "absolute")
	return err
}

func (m *MPV) SetPause(paused bool) error {
	return m.Set("pause", paused)
}

// Recover reinitializes the decoders of the current file.
func (m *MPV) Recover() error {
	if _, err := m.sendCommand("video-reload"); err != nil {
		return err
	}
	_, err := m.sendCommand("audio-reload")
	return err
}

// TimePos returns the current playback position in seconds.
func (m *MPV) TimePos() (float64, error) {
	return m.getFloatProperty("time-pos")
}

// Duration returns the length of the current file in seconds.
func (m *MPV) Duration() (float64, error) {
	return m.getFloatProperty("duration")
}

// Set a property
func (m *MPV) Set(property string, value any) error {
	_, err := m.sendCommand("set_property", property, value)
	return err
}

// IsRunning reports whether mpv is responding to IPC commands.
func (m *MPV) IsRunning() bool {
	if m.socketPath == "" {
		return false
	}

	select {
	case <-m.exited:
		return false
	default:
	}

	_, err := m.sendCommand("get_property", "pid")
	return err == nil
}

// Close quits mpv, killing it when it does not exit in time.
func (m *MPV) Close() error {
	if m.listener != nil {
		m.listener.Stop()
	}
	if m.socketPath == "" {
		return nil
	}

	_, _ = m.sendCommand("quit")

	select {
	case <-m.exited:
	case <-time.After(quitTimeout):
		_ = killTree(m.cmd)
	}

	_ = os.Remove(m.socketPath)
	return nil
}

func (m *MPV) getFloatProperty(name string) (float64, error) {
	data, err := m.sendCommand("get_property", name)
	if err != nil {
		return 0, err
	}

	if data == nil {
		return 0, fmt.Errorf("property %s: nil response", name)
	}

	val, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("property %s: expected float64, got %T", name, data)
	}

	return val, nil
}

// sanitizeMediaTarget rejects anything mpv could read as a flag.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", fmt.Errorf("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in URL")
	}

	if strings.HasPrefix(l, "-") {
		return "", fmt.Errorf("url must not start with '-' (looks like a flag)")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}
