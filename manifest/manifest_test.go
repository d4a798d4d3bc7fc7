package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const adPlaylist = "#EXTM3U\n#EXTINF:4,\na.ts\n#EXT-X-DISCONTINUITY\n#EXTINF:4,\nad.ts\n#EXT-X-DISCONTINUITY\n#EXTINF:4,\nb.ts"

func TestFilterDiscontinuity(t *testing.T) {
	Convey("Given a playlist with discontinuity-delimited ads", t, func() {
		Convey("FilterDiscontinuity should drop only the tag lines", func() {
			So(FilterDiscontinuity(adPlaylist), ShouldEqual, "#EXTM3U\n#EXTINF:4,\na.ts\n#EXTINF:4,\nad.ts\n#EXTINF:4,\nb.ts")
		})

		Convey("Lines merely containing the tag should be dropped as well", func() {
			in := "#EXTM3U\n#EXT-X-DISCONTINUITY-SEQUENCE:3\nx.ts"
			So(FilterDiscontinuity(in), ShouldEqual, "#EXTM3U\nx.ts")
		})

		Convey("Identity should leave it untouched", func() {
			So(Identity(adPlaylist), ShouldEqual, adPlaylist)
		})

		Convey("ForConfig should pick the filter only when ad blocking is on", func() {
			So(ForConfig(true)(adPlaylist), ShouldNotContainSubstring, discontinuityTag)
			So(ForConfig(false)(adPlaylist), ShouldEqual, adPlaylist)
		})

		Convey("Chain should apply transforms in order", func() {
			upper := func(s string) string { return strings.ToUpper(s) }
			So(Chain(FilterDiscontinuity, upper)("a\n#EXT-X-DISCONTINUITY\nb"), ShouldEqual, "A\nB")
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Resolve", t, func() {
		So(Resolve("https://cdn.example/v/master.m3u8", "720/index.m3u8"), ShouldEqual, "https://cdn.example/v/720/index.m3u8")
		So(Resolve("https://cdn.example/v/master.m3u8", "/root.m3u8"), ShouldEqual, "https://cdn.example/root.m3u8")
		So(Resolve("https://cdn.example/v/master.m3u8", "https://other.example/x.ts"), ShouldEqual, "https://other.example/x.ts")
	})
}

func TestHTTPFetcher(t *testing.T) {
	Convey("Given a stream host", t, func() {
		payload := strings.Repeat("x", 4096)
		var gotRange string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/index.m3u8":
				_, _ = w.Write([]byte(adPlaylist))
			case "/seg.ts":
				gotRange = r.Header.Get("Range")
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write([]byte(payload))
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		fetcher := NewHTTPFetcher(server.Client())
		ctx := context.Background()

		Convey("Fetch should return the playlist text", func() {
			body, err := fetcher.Fetch(ctx, server.URL+"/index.m3u8")
			So(err, ShouldBeNil)
			So(body, ShouldEqual, adPlaylist)
		})

		Convey("Fetch should fail with a StatusError on 404", func() {
			_, err := fetcher.Fetch(ctx, server.URL+"/missing")
			So(err, ShouldHaveSameTypeAs, &StatusError{})
		})

		Convey("Sample should request a range and stop at the limit", func() {
			n, elapsed, err := fetcher.Sample(ctx, server.URL+"/seg.ts", 1024)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1024)
			So(elapsed, ShouldBeGreaterThan, 0)
			So(gotRange, ShouldEqual, "bytes=0-1023")
		})

		Convey("Ping should count any response as reachable", func() {
			_, err := fetcher.Ping(ctx, server.URL+"/missing")
			So(err, ShouldBeNil)
		})

		Convey("WithTransform should rewrite fetched playlists", func() {
			body, err := WithTransform(fetcher, FilterDiscontinuity).Fetch(ctx, server.URL+"/index.m3u8")
			So(err, ShouldBeNil)
			So(body, ShouldNotContainSubstring, discontinuityTag)
		})
	})
}
