package cache

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTTL(t *testing.T) {
	Convey("Given a cache", t, func() {
		c := New[[]string]("test", time.Minute)

		Convey("A missing key should not be found", func() {
			_, ok := c.Get("nope")
			So(ok, ShouldBeFalse)
		})

		Convey("A stored value should be returned until invalidated", func() {
			c.Set("k", []string{"a"})
			v, ok := c.Get("k")
			So(ok, ShouldBeTrue)
			So(v, ShouldResemble, []string{"a"})

			c.Invalidate("k")
			_, ok = c.Get("k")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("QueryKey should ignore case and spacing", t, func() {
		So(QueryKey("  Foo   Bar "), ShouldEqual, QueryKey("foo bar"))
	})

	Convey("Key should keep identifiers as they are", t, func() {
		So(Key("alpha", "AbC"), ShouldNotEqual, Key("alpha", "abc"))
		So(Key("a", "1"), ShouldNotEqual, Key("a1", ""))
	})
}
