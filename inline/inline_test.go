package inline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/vidra-cli/vidra/matcher"
	"github.com/vidra-cli/vidra/prefer"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/source"
)

type fakeSearcher struct {
	results []*source.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, source.ByteProgress) ([]*source.Result, error) {
	return f.results, f.err
}

type fakeProber map[string]probe.Result

func (f fakeProber) Probe(_ context.Context, _, url string) probe.Result {
	if r, ok := f[url]; ok {
		return r
	}
	return probe.Failed()
}

func TestRun(t *testing.T) {
	Convey("Given a search returning two matching sources and an unrelated one", t, func() {
		alpha := &source.Result{Source: "alpha", ID: "1", Title: "Foo", Year: "2020", SourceName: "Alpha", Episodes: []string{"a1", "a2", "a3"}}
		beta := &source.Result{Source: "beta", ID: "2", Title: "Foo", Year: "2020", SourceName: "Beta", Episodes: []string{"b1", "b2"}}
		other := &source.Result{Source: "gamma", ID: "3", Title: "Bar", Year: "2020", SourceName: "Gamma", Episodes: []string{"c1"}}

		searcher := &fakeSearcher{results: []*source.Result{alpha, beta, other}}
		deps := Deps{
			Search:  search.New(searcher, 0),
			Matcher: matcher.New("[(", "])"),
			Preferer: prefer.New(fakeProber{
				"b2": {Quality: probe.Quality1080p, LoadSpeed: "2.00 MB/s", PingTime: 100},
			}),
		}

		var out bytes.Buffer
		options := &Options{Out: &out, Query: "Foo", Year: "2020"}

		Convey("Plain output should list filtered episodes of every match", func() {
			options.EpisodesFilter = mo.Some(lo.Must(ParseEpisodesFilter("first")))
			So(Run(context.Background(), deps, options), ShouldBeNil)
			So(out.String(), ShouldEqual, "a1\nb1\n")
		})

		Convey("Ranking should put the answering source first", func() {
			options.Json = true
			options.Rank = true

			So(Run(context.Background(), deps, options), ShouldBeNil)

			var output Output
			So(json.Unmarshal(out.Bytes(), &output), ShouldBeNil)
			So(output.Query, ShouldEqual, "Foo")
			So(output.Result, ShouldHaveLength, 2)

			So(output.Result[0].Source, ShouldEqual, "Beta")
			So(output.Result[0].Probe.Quality, ShouldEqual, probe.Quality1080p)
			So(output.Result[0].Score, ShouldBeGreaterThan, 0)

			So(output.Result[1].Source, ShouldEqual, "Alpha")
			So(output.Result[1].Probe.HasError, ShouldBeTrue)
			So(output.Result[1].Episodes, ShouldResemble, []string{"a1", "a2", "a3"})

			Convey("A picker should keep only the best", func() {
				out.Reset()
				options.SourcePicker = mo.Some(lo.Must(ParseSourcePicker("first", "")))
				So(Run(context.Background(), deps, options), ShouldBeNil)
				So(json.Unmarshal(out.Bytes(), &output), ShouldBeNil)
				So(output.Result, ShouldHaveLength, 1)
				So(output.Result[0].Result.Key(), ShouldEqual, beta.Key())
			})
		})

		Convey("An exact picker and a range should narrow both ways", func() {
			options.SourcePicker = mo.Some(lo.Must(ParseSourcePicker("exact", "alpha")))
			options.EpisodesFilter = mo.Some(lo.Must(ParseEpisodesFilter("1-5")))
			So(Run(context.Background(), deps, options), ShouldBeNil)
			So(out.String(), ShouldEqual, "a2\na3\n")
		})

		Convey("An empty search should print an empty json result", func() {
			searcher.results = nil
			options.Json = true
			So(Run(context.Background(), deps, options), ShouldBeNil)
			So(out.String(), ShouldEqual, `{"query":"Foo","year":"2020","result":[]}`)
		})

		Convey("A search error should be returned", func() {
			searcher.err = errors.New("upstream down")
			err := Run(context.Background(), deps, options)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "upstream down")
		})

		Convey("Ranking without a preferer should fail", func() {
			deps.Preferer = nil
			options.Rank = true
			So(Run(context.Background(), deps, options), ShouldNotBeNil)
		})
	})
}

func TestParseSourcePicker(t *testing.T) {
	results := []*source.Result{
		{Source: "alpha", SourceName: "Alpha"},
		{Source: "beta", SourceName: "Beta"},
	}

	Convey("Pickers should choose by position or name", t, func() {
		So(lo.Must(ParseSourcePicker("first", ""))(results), ShouldEqual, results[0])
		So(lo.Must(ParseSourcePicker("last", ""))(results), ShouldEqual, results[1])
		So(lo.Must(ParseSourcePicker("exact", "BETA"))(results), ShouldEqual, results[1])
		So(lo.Must(ParseSourcePicker("exact", "delta"))(results), ShouldBeNil)
		So(lo.Must(ParseSourcePicker("index", "7"))(results), ShouldEqual, results[1])
		So(lo.Must(ParseSourcePicker("first", ""))(nil), ShouldBeNil)
	})

	Convey("Unknown kinds and bad indexes should be rejected", t, func() {
		_, err := ParseSourcePicker("best", "")
		So(err, ShouldNotBeNil)
		_, err = ParseSourcePicker("index", "x")
		So(err, ShouldNotBeNil)
	})
}

func TestParseEpisodesFilter(t *testing.T) {
	episodes := []string{"https://cdn/ep1.m3u8", "https://cdn/ep2.m3u8", "https://cdn/ep3.m3u8"}

	Convey("Filters should select episodes", t, func() {
		apply := func(description string) []string {
			filtered, err := lo.Must(ParseEpisodesFilter(description))(episodes)
			So(err, ShouldBeNil)
			return filtered
		}

		So(apply("first"), ShouldResemble, episodes[:1])
		So(apply("last"), ShouldResemble, episodes[2:])
		So(apply("all"), ShouldResemble, episodes)
		So(apply("1-9"), ShouldResemble, episodes[1:])
		So(apply("2-1"), ShouldBeEmpty)
		So(apply("@EP2@"), ShouldResemble, episodes[1:2])
		So(apply("0"), ShouldResemble, episodes[:1])
		So(apply("5"), ShouldBeEmpty)
	})

	Convey("Garbage should be rejected", t, func() {
		_, err := ParseEpisodesFilter("some")
		So(err, ShouldNotBeNil)
		_, err = ParseEpisodesFilter("@")
		So(err, ShouldNotBeNil)
	})
}
