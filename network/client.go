// Package network provides the HTTP client shared by provider and stream requests.
package network

import (
	"net/http"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/constant"
	"github.com/vidra-cli/vidra/key"
)

var (
	client     *http.Client
	clientOnce sync.Once
)

// Client returns the process-wide client built from configuration on first use.
// Request deadlines come from contexts, so the client itself has no timeout.
func Client() *http.Client {
	clientOnce.Do(func() {
		client = New(Options{
			Referer:     viper.GetString(key.ProviderReferer),
			Fingerprint: viper.GetBool(key.ProviderTLSFingerprint),
		})
	})
	return client
}

// Options tune a client built with New.
type Options struct {
	// Referer is sent as Referer and Origin when set.
	Referer string
	// Fingerprint dials TLS with a browser ClientHello.
	Fingerprint bool
}

// New builds a client that stamps browser-like headers on every request.
func New(opts Options) *http.Client {
	var base http.RoundTripper = newTransport()
	if opts.Fingerprint {
		base = newFingerprintTransport()
	}

	return &http.Client{
		Transport: &headerTransport{base: base, referer: opts.Referer},
	}
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 16
	t.IdleConnTimeout = 90 * time.Second
	t.TLSHandshakeTimeout = 10 * time.Second
	t.ResponseHeaderTimeout = 15 * time.Second
	return t
}

// headerTransport sets default headers without overriding ones the caller chose.
type headerTransport struct {
	base    http.RoundTripper
	referer string
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	setDefault := func(name, value string) {
		if value != "" && req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	setDefault("User-Agent", constant.UserAgent)
	setDefault("Accept", "*/*")
	setDefault("Referer", h.referer)
	setDefault("Origin", origin(h.referer))

	return h.base.RoundTrip(req)
}
