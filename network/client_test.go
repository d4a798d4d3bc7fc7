package network

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vidra-cli/vidra/constant"
)

func TestClient(t *testing.T) {
	Convey("Given a client with a referer", t, func() {
		var got http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
		}))
		defer server.Close()

		client := New(Options{Referer: "https://player.example.com/embed/1"})

		Convey("When a request without headers is sent", func() {
			resp, err := client.Get(server.URL)
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then default headers should be stamped", func() {
				So(got.Get("User-Agent"), ShouldEqual, constant.UserAgent)
				So(got.Get("Referer"), ShouldEqual, "https://player.example.com/embed/1")
				So(got.Get("Origin"), ShouldEqual, "https://player.example.com")
			})
		})

		Convey("When the caller sets a header", func() {
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			req.Header.Set("User-Agent", "custom")
			resp, err := client.Do(req)
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then it should be kept", func() {
				So(got.Get("User-Agent"), ShouldEqual, "custom")
			})
		})
	})

	Convey("origin should reduce a url to scheme and host", t, func() {
		So(origin(""), ShouldEqual, "")
		So(origin("https://a.example/b/c?d=1"), ShouldEqual, "https://a.example")
	})
}
