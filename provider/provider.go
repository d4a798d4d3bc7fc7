// Package provider talks to the aggregator API that fans a query out to every video source.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/internal/cache"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/metrics"
	"github.com/vidra-cli/vidra/network"
	"github.com/vidra-cli/vidra/source"
	"go.uber.org/ratelimit"
)

// ErrStatus is wrapped by errors for non-2xx aggregator responses.
var ErrStatus = errors.New("unexpected status")

// ErrNotFound is returned by Detail when the aggregator has no such entry.
var ErrNotFound = errors.New("entry not found")

const (
	searchPath = "/api/search"
	detailPath = "/api/detail"
)

// Client implements source.Searcher and source.Detailer over the aggregator API.
type Client struct {
	base    string
	http    *http.Client
	limiter ratelimit.Limiter

	searches *cache.TTL[[]*source.Result]
	details  *cache.TTL[*source.Result]
}

// New creates a client for the aggregator at base, sending at most rps requests per second.
func New(base string, client *http.Client, rps int) *Client {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}

	return &Client{
		base:     strings.TrimSuffix(base, "/"),
		http:     client,
		limiter:  limiter,
		searches: cache.New[[]*source.Result]("search", cache.SearchTTL),
		details:  cache.New[*source.Result]("detail", cache.DetailTTL),
	}
}

// Default creates a client from configuration using the shared HTTP client.
func Default() *Client {
	return New(
		viper.GetString(key.ProviderAPIURL),
		network.Client(),
		viper.GetInt(key.ProviderRateLimit),
	)
}

type searchResponse struct {
	Results []*source.Result `json:"results"`
}

// Search returns every provider's results for query. Responses are cached for a few minutes.
func (c *Client) Search(ctx context.Context, query string, progress source.ByteProgress) ([]*source.Result, error) {
	cacheKey := cache.QueryKey(query)
	if cached, ok := c.searches.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{"q": {query}}

	var resp searchResponse
	if err := c.get(ctx, searchPath, params, progress, &resp); err != nil {
		return nil, err
	}

	results := valid(resp.Results)
	c.searches.Set(cacheKey, results)
	return results, nil
}

// Detail fetches one entry by provider and id.
func (c *Client) Detail(ctx context.Context, src, id string, progress source.ByteProgress) (*source.Result, error) {
	cacheKey := cache.Key(src, id)
	if cached, ok := c.details.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{"source": {src}, "id": {id}}

	var result source.Result
	if err := c.get(ctx, detailPath, params, progress, &result); err != nil {
		return nil, err
	}

	if result.Source == "" {
		result.Source = src
	}
	if result.ID == "" {
		result.ID = id
	}

	c.details.Set(cacheKey, &result)
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, progress source.ByteProgress, target any) error {
	c.limiter.Take()

	endpoint := c.base + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	log.Debugf("provider: GET %s", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(path, "error").Inc()
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && path == detailPath:
		metrics.ProviderRequests.WithLabelValues(path, "not_found").Inc()
		return fmt.Errorf("%s %s: %w", params.Get("source"), params.Get("id"), ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.ProviderRequests.WithLabelValues(path, "status").Inc()
		return fmt.Errorf("%s: %w %d", path, ErrStatus, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		body = &countingReader{r: resp.Body, total: resp.ContentLength, progress: progress}
	}

	if err := json.NewDecoder(body).Decode(target); err != nil {
		metrics.ProviderRequests.WithLabelValues(path, "decode").Inc()
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	metrics.ProviderRequests.WithLabelValues(path, "ok").Inc()
	return nil
}

// valid drops entries without an identity.
func valid(results []*source.Result) []*source.Result {
	out := make([]*source.Result, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == "" || r.ID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// countingReader reports how many bytes of a body have been read.
type countingReader struct {
	r        io.Reader
	read     int64
	total    int64
	progress source.ByteProgress
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		c.progress(c.read, c.total)
	}
	return n, err
}
