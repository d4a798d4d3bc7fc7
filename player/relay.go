package player

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/grafana/regexp"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/metrics"
)

const playlistPath = "/playlist"

// uriAttribute matches the URI attribute of EXT-X-MEDIA, EXT-X-KEY and similar tags.
var uriAttribute = regexp.MustCompile(`URI="([^"]*)"`)

// Relay serves playlists to the local player with the session's transform applied.
// Every nested playlist is routed back through the relay; segments and keys
// are rewritten to absolute upstream URLs and fetched by the player directly.
type Relay struct {
	fetcher   manifest.Fetcher
	transform atomic.Pointer[manifest.Transform]

	server *http.Server
	base   string
}

// NewRelay returns a relay fetching upstream playlists with fetcher.
func NewRelay(fetcher manifest.Fetcher) *Relay {
	r := &Relay{fetcher: fetcher}
	r.SetTransform(manifest.Identity)
	return r
}

// SetTransform replaces the transform applied to playlists served from now on.
func (r *Relay) SetTransform(t manifest.Transform) {
	if t == nil {
		t = manifest.Identity
	}
	r.transform.Store(&t)
}

// Handler routes the relay endpoints.
func (r *Relay) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(playlistPath, r.servePlaylist).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return gzhttp.GzipHandler(router)
}

// Start listens on addr and serves in the background.
func (r *Relay) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", addr, err)
	}

	r.base = "http://" + ln.Addr().String()
	r.server = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("relay: %s", err)
		}
	}()

	log.Infof("relay listening on %s", r.base)
	return nil
}

// Addr is the base URL of a started relay.
func (r *Relay) Addr() string {
	return r.base
}

// URL returns the relay address serving the playlist at upstream.
func (r *Relay) URL(upstream string) string {
	return r.base + playlistPath + "?u=" + url.QueryEscape(upstream)
}

// Close stops the server.
func (r *Relay) Close(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Relay) servePlaylist(w http.ResponseWriter, req *http.Request) {
	upstream := req.URL.Query().Get("u")
	if upstream == "" {
		metrics.RelayRequests.WithLabelValues("error").Inc()
		http.Error(w, "missing u parameter", http.StatusBadRequest)
		return
	}

	text, err := r.fetcher.Fetch(req.Context(), upstream)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("error").Inc()
		log.Warnf("relay: fetch %s: %s", upstream, err)

		status := http.StatusBadGateway
		var se *manifest.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	kind := "media"
	if manifest.IsMaster(text) {
		kind = "master"
	}
	metrics.RelayRequests.WithLabelValues(kind).Inc()

	transform := *r.transform.Load()
	body := r.Rewrite(transform(text), upstream)

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(body))
}

// Rewrite points nested playlists at the relay and every other reference at its absolute upstream URL.
func (r *Relay) Rewrite(text, upstream string) string {
	master := manifest.IsMaster(text)
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#"):
			lines[i] = r.rewriteTag(line, upstream)
		case master:
			lines[i] = r.URL(manifest.Resolve(upstream, trimmed))
		default:
			lines[i] = manifest.Resolve(upstream, trimmed)
		}
	}

	return strings.Join(lines, "\n")
}

func (r *Relay) rewriteTag(line, upstream string) string {
	if !strings.Contains(line, `URI="`) {
		return line
	}

	nested := strings.HasPrefix(line, "#EXT-X-MEDIA:") || strings.HasPrefix(line, "#EXT-X-I-FRAME-STREAM-INF:")
	return uriAttribute.ReplaceAllStringFunc(line, func(attr string) string {
		ref := uriAttribute.FindStringSubmatch(attr)[1]
		abs := manifest.Resolve(upstream, ref)
		if nested {
			abs = r.URL(abs)
		}
		return `URI="` + abs + `"`
	})
}
