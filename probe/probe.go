// Package probe measures the resolution, throughput and latency of HLS streams.
package probe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	errNoVariants = errors.New("master playlist has no variants")
	errNoSegments = errors.New("media playlist has no segments")
	errNotMedia   = errors.New("variant is not a media playlist")
	errNoSample   = errors.New("segment sample was empty")
)

// DefaultSampleBytes is the throughput sample used when none is configured.
const DefaultSampleBytes = 512 * 1024

// Prober probes streams and remembers the results for its lifetime.
// It is safe for concurrent use.
type Prober struct {
	fetcher manifest.Fetcher
	timeout time.Duration
	sample  int64

	memo  *xsync.MapOf[string, Result]
	group singleflight.Group
}

// New creates a prober. sample is the number of segment bytes downloaded to measure throughput.
// A non-positive sample falls back to DefaultSampleBytes.
func New(fetcher manifest.Fetcher, timeout time.Duration, sample int64) *Prober {
	if sample <= 0 {
		sample = DefaultSampleBytes
	}
	return &Prober{
		fetcher: fetcher,
		timeout: timeout,
		sample:  sample,
		memo:    xsync.NewMapOf[string, Result](),
	}
}

// Default creates a prober configured from viper.
func Default(fetcher manifest.Fetcher) *Prober {
	return New(fetcher, viper.GetDuration(key.ProbeTimeout), viper.GetInt64(key.ProbeSampleBytes))
}

// Probe returns the memoized result for key, probing manifestURL on a miss.
// Concurrent calls for the same key share one probe.
// Results of a probe cut short by the caller's context are not remembered.
func (p *Prober) Probe(ctx context.Context, key, manifestURL string) Result {
	if r, ok := p.memo.Load(key); ok {
		return r
	}

	v, _, _ := p.group.Do(key, func() (any, error) {
		if r, ok := p.memo.Load(key); ok {
			return r, nil
		}

		r := p.Measure(ctx, manifestURL)
		if ctx.Err() == nil {
			p.memo.Store(key, r)
		}
		return r, nil
	})

	return v.(Result)
}

// Cached returns the remembered result for key.
func (p *Prober) Cached(key string) (Result, bool) {
	return p.memo.Load(key)
}

// Measure probes manifestURL without consulting or filling the memo.
// It never fails: any error yields Failed().
func (p *Prober) Measure(ctx context.Context, manifestURL string) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	r, err := p.measure(ctx, manifestURL)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		log.Debugf("probe %s: %v", manifestURL, err)
		return Failed()
	}

	metrics.ProbesTotal.WithLabelValues("ok").Inc()
	return r
}

func (p *Prober) measure(ctx context.Context, manifestURL string) (Result, error) {
	playlist, listType, err := p.decode(ctx, manifestURL)
	if err != nil {
		return Result{}, err
	}

	quality := QualityUnknown
	mediaURL := manifestURL

	var media *m3u8.MediaPlaylist
	switch listType {
	case m3u8.MASTER:
		variant := bestVariant(playlist.(*m3u8.MasterPlaylist).Variants)
		if variant == nil {
			return Result{}, errNoVariants
		}

		quality = Classify(ParseResolution(variant.Resolution))
		mediaURL = manifest.Resolve(manifestURL, variant.URI)

		playlist, listType, err = p.decode(ctx, mediaURL)
		if err != nil {
			return Result{}, err
		}
		if listType != m3u8.MEDIA {
			return Result{}, errNotMedia
		}
		media = playlist.(*m3u8.MediaPlaylist)
	case m3u8.MEDIA:
		media = playlist.(*m3u8.MediaPlaylist)
	}

	segment := firstSegment(media)
	if segment == nil {
		return Result{}, errNoSegments
	}
	segmentURL := manifest.Resolve(mediaURL, segment.URI)

	var (
		ping    time.Duration
		n       int64
		elapsed time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ping, err = p.fetcher.Ping(gctx, manifestURL)
		return err
	})
	g.Go(func() (err error) {
		n, elapsed, err = p.fetcher.Sample(gctx, segmentURL, p.sample)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if n <= 0 || elapsed <= 0 {
		return Result{}, errNoSample
	}

	bps := float64(n) / elapsed.Seconds()
	return Result{
		Quality:        quality,
		LoadSpeed:      FormatSpeed(bps),
		PingTime:       ping.Milliseconds(),
		BytesPerSecond: bps,
	}, nil
}

func (p *Prober) decode(ctx context.Context, url string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	return m3u8.DecodeFrom(strings.NewReader(body), false)
}

// bestVariant picks the variant with the most pixels, breaking ties by bandwidth.
func bestVariant(variants []*m3u8.Variant) *m3u8.Variant {
	var (
		best       *m3u8.Variant
		bestPixels int
	)

	for _, v := range variants {
		if v == nil {
			break
		}

		w, h := ParseResolution(v.Resolution)
		pixels := w * h

		switch {
		case best == nil,
			pixels > bestPixels,
			pixels == bestPixels && v.Bandwidth > best.Bandwidth:
			best, bestPixels = v, pixels
		}
	}

	return best
}

func firstSegment(media *m3u8.MediaPlaylist) *m3u8.MediaSegment {
	if media == nil {
		return nil
	}
	for _, s := range media.Segments {
		if s == nil {
			break
		}
		if s.URI != "" {
			return s
		}
	}
	return nil
}
