package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vidra-cli/vidra/manifest"
)

const (
	master = "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=1280x720\n720/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1920x1080\n1080/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=1920x1080\n1080low/index.m3u8\n"
	media = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:4.0,\nseg0.ts\n#EXTINF:4.0,\nseg1.ts\n#EXT-X-ENDLIST\n"
	empty = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-ENDLIST\n"
)

func newStreamHost(requested *[]string, mu *sync.Mutex) *httptest.Server {
	segment := strings.Repeat("v", 64*1024)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*requested = append(*requested, r.URL.Path)
		mu.Unlock()

		switch {
		case r.URL.Path == "/master.m3u8":
			_, _ = w.Write([]byte(master))
		case strings.HasSuffix(r.URL.Path, "index.m3u8"), r.URL.Path == "/media.m3u8":
			_, _ = w.Write([]byte(media))
		case r.URL.Path == "/empty.m3u8":
			_, _ = w.Write([]byte(empty))
		case strings.HasSuffix(r.URL.Path, ".ts"):
			_, _ = w.Write([]byte(segment))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestProber(t *testing.T) {
	Convey("Given a stream host", t, func() {
		var (
			requested []string
			mu        sync.Mutex
		)
		server := newStreamHost(&requested, &mu)
		defer server.Close()

		prober := New(manifest.NewHTTPFetcher(server.Client()), 5*time.Second, 16*1024)
		ctx := context.Background()

		Convey("When a master playlist is measured", func() {
			r := prober.Measure(ctx, server.URL+"/master.m3u8")

			Convey("Then the highest resolution with the highest bandwidth should be used", func() {
				So(r.HasError, ShouldBeFalse)
				So(r.Quality, ShouldEqual, Quality1080p)
				mu.Lock()
				So(requested, ShouldContain, "/1080/index.m3u8")
				So(requested, ShouldNotContain, "/1080low/index.m3u8")
				So(requested, ShouldContain, "/1080/seg0.ts")
				mu.Unlock()
			})

			Convey("And the speed should be formatted", func() {
				So(r.LoadSpeed, ShouldNotEqual, UnknownSpeed)
				So(r.BytesPerSecond, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When a media playlist is measured", func() {
			r := prober.Measure(ctx, server.URL+"/media.m3u8")

			Convey("Then quality should be unknown but the probe should succeed", func() {
				So(r.HasError, ShouldBeFalse)
				So(r.Quality, ShouldEqual, QualityUnknown)
			})
		})

		Convey("When the playlist has no segments", func() {
			So(prober.Measure(ctx, server.URL+"/empty.m3u8"), ShouldResemble, Failed())
		})

		Convey("When the manifest is missing", func() {
			So(prober.Measure(ctx, server.URL+"/missing.m3u8"), ShouldResemble, Failed())
		})
	})
}

type countingFetcher struct {
	fetches atomic.Int32
	release chan struct{}
}

func (c *countingFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	c.fetches.Add(1)
	select {
	case <-c.release:
		return media, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *countingFetcher) Sample(context.Context, string, int64) (int64, time.Duration, error) {
	return 2048 * 1024, time.Second, nil
}

func (c *countingFetcher) Ping(context.Context, string) (time.Duration, error) {
	return 120 * time.Millisecond, nil
}

func TestProbeMemo(t *testing.T) {
	Convey("Given a slow fetcher", t, func() {
		fetcher := &countingFetcher{release: make(chan struct{})}
		prober := New(fetcher, 5*time.Second, 1024)

		Convey("Concurrent probes of one key should share a single fetch", func() {
			var wg sync.WaitGroup
			results := make([]Result, 8)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = prober.Probe(context.Background(), "a+1", "http://cdn/a.m3u8")
				}(i)
			}

			time.Sleep(20 * time.Millisecond)
			close(fetcher.release)
			wg.Wait()

			So(fetcher.fetches.Load(), ShouldEqual, 1)
			for _, r := range results {
				So(r.LoadSpeed, ShouldEqual, "2.0 MB/s")
				So(r.PingTime, ShouldEqual, 120)
			}

			Convey("And later probes should hit the memo", func() {
				prober.Probe(context.Background(), "a+1", "http://cdn/a.m3u8")
				So(fetcher.fetches.Load(), ShouldEqual, 1)

				cached, ok := prober.Cached("a+1")
				So(ok, ShouldBeTrue)
				So(cached.HasError, ShouldBeFalse)
			})
		})

		Convey("A probe cancelled by its caller should not be remembered", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			r := prober.Probe(ctx, "b+1", "http://cdn/b.m3u8")
			So(r.HasError, ShouldBeTrue)

			_, ok := prober.Cached("b+1")
			So(ok, ShouldBeFalse)
		})
	})
}

type limitFetcher struct {
	countingFetcher
	limit atomic.Int64
}

func (f *limitFetcher) Sample(_ context.Context, _ string, limit int64) (int64, time.Duration, error) {
	f.limit.Store(limit)
	return limit, time.Second, nil
}

func TestSampleSize(t *testing.T) {
	Convey("A non-positive sample size should fall back to the default", t, func() {
		for _, sample := range []int64{0, -1} {
			f := &limitFetcher{countingFetcher: countingFetcher{release: make(chan struct{})}}
			close(f.release)

			r := New(f, time.Second, sample).Measure(context.Background(), "http://cdn/a.m3u8")
			So(r.HasError, ShouldBeFalse)
			So(f.limit.Load(), ShouldEqual, int64(DefaultSampleBytes))
		}
	})
}

type failingFetcher struct{ countingFetcher }

func (f *failingFetcher) Sample(context.Context, string, int64) (int64, time.Duration, error) {
	return 0, 0, errors.New("reset by peer")
}

func TestProbeFailure(t *testing.T) {
	Convey("A failing sample should yield the failed result", t, func() {
		f := &failingFetcher{}
		f.release = make(chan struct{})
		close(f.release)

		r := New(f, time.Second, 1024).Measure(context.Background(), "http://cdn/x.m3u8")
		So(r, ShouldResemble, Failed())
	})
}

func TestClassify(t *testing.T) {
	Convey("Classify", t, func() {
		So(Classify(3840, 2160), ShouldEqual, Quality4K)
		So(Classify(2560, 1440), ShouldEqual, Quality2K)
		So(Classify(1920, 1080), ShouldEqual, Quality1080p)
		So(Classify(1280, 720), ShouldEqual, Quality720p)
		So(Classify(854, 480), ShouldEqual, Quality480p)
		So(Classify(640, 360), ShouldEqual, QualitySD)
		So(Classify(0, 0), ShouldEqual, QualityUnknown)

		Convey("Height should be used when the width is unknown", func() {
			So(Classify(0, 2160), ShouldEqual, Quality4K)
			So(Classify(0, 1440), ShouldEqual, Quality2K)
			So(Classify(0, 1080), ShouldEqual, Quality1080p)
			So(Classify(0, 720), ShouldEqual, Quality720p)
			So(Classify(0, 480), ShouldEqual, Quality480p)
			So(Classify(0, 360), ShouldEqual, QualitySD)
		})
	})

	Convey("ParseResolution", t, func() {
		w, h := ParseResolution("1920x1080")
		So(w, ShouldEqual, 1920)
		So(h, ShouldEqual, 1080)

		w, h = ParseResolution("garbage")
		So(w, ShouldEqual, 0)
		So(h, ShouldEqual, 0)
	})

	Convey("FormatSpeed", t, func() {
		So(FormatSpeed(512*1024), ShouldEqual, "512.0 KB/s")
		So(FormatSpeed(1024*1024), ShouldEqual, "1.0 MB/s")
		So(FormatSpeed(1536*1024), ShouldEqual, "1.5 MB/s")
	})
}
