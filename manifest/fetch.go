package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves playlists and measures the hosts serving them.
type Fetcher interface {
	// Fetch returns the body of url as text.
	Fetch(ctx context.Context, url string) (string, error)
	// Sample downloads at most limit bytes of url and reports how many arrived and how long it took.
	Sample(ctx context.Context, url string, limit int64) (int64, time.Duration, error)
	// Ping measures the round-trip of a HEAD request. Any HTTP response counts as reachable.
	Ping(ctx context.Context, url string) (time.Duration, error)
}

// StatusError is returned when a host answers with an unexpected status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// HTTPFetcher implements Fetcher over an http.Client.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher wraps client. Header defaults are the client's concern.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (h *HTTPFetcher) Sample(ctx context.Context, url string, limit int64) (int64, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", limit-1))

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, 0, &StatusError{Code: resp.StatusCode, URL: url}
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, limit))
	elapsed := time.Since(start)
	if err != nil {
		return n, elapsed, err
	}
	return n, elapsed, nil
}

func (h *HTTPFetcher) Ping(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return time.Since(start), nil
}

type transformed struct {
	Fetcher
	transform Transform
}

func (t *transformed) Fetch(ctx context.Context, url string) (string, error) {
	body, err := t.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return t.transform(body), nil
}

// WithTransform applies transform to every playlist f fetches.
func WithTransform(f Fetcher, transform Transform) Fetcher {
	if transform == nil {
		return f
	}
	return &transformed{Fetcher: f, transform: transform}
}
