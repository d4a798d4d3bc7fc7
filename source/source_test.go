package source

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResult(t *testing.T) {
	Convey("Given a series result", t, func() {
		r := &Result{Source: "alpha", ID: "42", Title: "Foo", Year: "2020", SourceName: "Alpha", Episodes: []string{"e1", "e2"}}

		Convey("Key should join source and id with a plus", func() {
			So(r.Key(), ShouldEqual, "alpha+42")
			So(r.Ref().Key(), ShouldEqual, r.Key())
		})

		Convey("Episode should be bounds checked", func() {
			url, ok := r.Episode(1)
			So(ok, ShouldBeTrue)
			So(url, ShouldEqual, "e2")

			_, ok = r.Episode(2)
			So(ok, ShouldBeFalse)
			_, ok = r.Episode(-1)
			So(ok, ShouldBeFalse)
		})

		Convey("It should not be a movie", func() {
			So(r.IsMovie(), ShouldBeFalse)
		})

		Convey("Find should locate it by ref", func() {
			other := &Result{Source: "beta", ID: "42"}
			found, ok := Find([]*Result{other, r}, Ref{Source: "alpha", ID: "42"})
			So(ok, ShouldBeTrue)
			So(found, ShouldEqual, r)

			_, ok = Find([]*Result{other}, Ref{Source: "alpha", ID: "42"})
			So(ok, ShouldBeFalse)
		})
	})
}

func TestQuery(t *testing.T) {
	Convey("QueryFrom should carry every identity hint of the result", t, func() {
		r := &Result{Source: "alpha", ID: "1", Title: "Foo", Year: "unknown", Episodes: []string{"a", "b", "c"}}
		q := QueryFrom(r)

		So(q.Title, ShouldEqual, "Foo")
		So(q.Year.MustGet(), ShouldEqual, "unknown")
		So(q.EpisodeCountHint.MustGet(), ShouldEqual, 3)
		So(q.Origin.MustGet(), ShouldResemble, Ref{Source: "alpha", ID: "1"})
	})

	Convey("QueryText should treat an empty year as absent", t, func() {
		So(QueryText("Foo", "").Year.IsPresent(), ShouldBeFalse)
		So(QueryText("Foo", "2020").Year.MustGet(), ShouldEqual, "2020")
		So(QueryText("Foo", "2020").Origin.IsPresent(), ShouldBeFalse)
	})
}

func TestParseKey(t *testing.T) {
	Convey("ParseKey should invert Key", t, func() {
		ref, ok := ParseKey(Key("alpha", "a+b"))
		So(ok, ShouldBeTrue)
		So(ref, ShouldResemble, Ref{Source: "alpha", ID: "a+b"})
	})

	Convey("ParseKey should reject keys without both halves", t, func() {
		for _, k := range []string{"", "alpha", "alpha+", "+1"} {
			_, ok := ParseKey(k)
			So(ok, ShouldBeFalse)
		}
	})
}
