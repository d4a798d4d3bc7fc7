package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const searchBody = `{"results":[
	{"source":"a","id":"1","title":"Foo","year":"2020","episodes":["a1","a2"],"source_name":"Alpha"},
	{"source":"","id":"2","title":"Broken"},
	{"source":"b","id":"2","title":"Foo","year":"2020","episodes":["b1"],"source_name":"Beta"}
]}`

func TestClient(t *testing.T) {
	Convey("Given an aggregator", t, func() {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			switch r.URL.Path {
			case searchPath:
				if r.URL.Query().Get("q") == "boom" {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(searchBody))
			case detailPath:
				title, ok := map[string]string{"1": "Foo", "Ab": "Upper", "ab": "Lower"}[r.URL.Query().Get("id")]
				if !ok {
					http.NotFound(w, r)
					return
				}
				_, _ = fmt.Fprintf(w, `{"title":%q,"year":"2020","episodes":["a1"],"source_name":"Alpha"}`, title)
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		client := New(server.URL+"/", server.Client(), 0)
		ctx := context.Background()

		Convey("When searching", func() {
			var last, total int64
			results, err := client.Search(ctx, "Foo", func(read, t int64) { last, total = read, t })

			Convey("Then entries without identity should be dropped", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].Key(), ShouldEqual, "a+1")
				So(results[1].SourceName, ShouldEqual, "Beta")
			})

			Convey("Then byte progress should reach the full body", func() {
				So(last, ShouldEqual, int64(len(searchBody)))
				So(total, ShouldEqual, int64(len(searchBody)))
			})

			Convey("Then a repeated search should be served from cache", func() {
				_, err := client.Search(ctx, "  foo ", nil)
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the aggregator fails", func() {
			_, err := client.Search(ctx, "boom", nil)
			So(errors.Is(err, ErrStatus), ShouldBeTrue)
		})

		Convey("When fetching a detail", func() {
			r, err := client.Detail(ctx, "a", "1", nil)
			So(err, ShouldBeNil)
			So(r.Key(), ShouldEqual, "a+1")
			So(r.Title, ShouldEqual, "Foo")
		})

		Convey("When ids differ only by case", func() {
			upper, err := client.Detail(ctx, "a", "Ab", nil)
			So(err, ShouldBeNil)
			lower, err := client.Detail(ctx, "a", "ab", nil)
			So(err, ShouldBeNil)

			Convey("Then each should get its own detail", func() {
				So(upper.Title, ShouldEqual, "Upper")
				So(lower.Title, ShouldEqual, "Lower")
				So(hits.Load(), ShouldEqual, 2)
			})

			Convey("Then a repeated fetch should be served from cache", func() {
				again, err := client.Detail(ctx, "a", "Ab", nil)
				So(err, ShouldBeNil)
				So(again.Title, ShouldEqual, "Upper")
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the detail is gone", func() {
			_, err := client.Detail(ctx, "a", "9", nil)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
