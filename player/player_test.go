package player

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/session"
)

type load struct {
	target string
	title  string
	start  float64
}

type fakeEngine struct {
	loads    []load
	seeks    []float64
	pauses   []bool
	recovers int
	pos      float64
	posErr   error
	closed   bool
}

func (e *fakeEngine) Loadfile(target, title string, start float64) error {
	e.loads = append(e.loads, load{target, title, start})
	return nil
}

func (e *fakeEngine) Seek(s float64) error      { e.seeks = append(e.seeks, s); return nil }
func (e *fakeEngine) SetPause(p bool) error     { e.pauses = append(e.pauses, p); return nil }
func (e *fakeEngine) Recover() error            { e.recovers++; return nil }
func (e *fakeEngine) TimePos() (float64, error) { return e.pos, e.posErr }
func (e *fakeEngine) Close() error              { e.closed = true; return nil }

func TestAdapter(t *testing.T) {
	Convey("Given an adapter over a relay", t, func() {
		engine := &fakeEngine{}
		relay := NewRelay(nil)
		relay.base = "http://127.0.0.1:9000"
		a := NewAdapter(engine, relay)

		media := session.Media{
			URL:       "https://cdn.example/ep2.m3u8",
			Title:     "Foo - 2",
			Episode:   1,
			Transform: manifest.FilterDiscontinuity,
		}

		Convey("Load should install the transform and load through the relay", func() {
			So(a.Load(context.Background(), media), ShouldBeNil)

			So(engine.loads, ShouldResemble, []load{{relay.URL(media.URL), "Foo - 2", 0}})
			So((*relay.transform.Load())("a\n#EXT-X-DISCONTINUITY\nb"), ShouldEqual, "a\nb")
		})

		Convey("Load should not touch the engine once the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(a.Load(ctx, media), ShouldEqual, context.Canceled)
			So(engine.loads, ShouldBeEmpty)
		})

		Convey("Reload should restart the current media where it was", func() {
			So(a.Load(context.Background(), media), ShouldBeNil)
			engine.pos = 321.5
			So(a.Reload(), ShouldBeNil)
			So(engine.loads[1], ShouldResemble, load{relay.URL(media.URL), "Foo - 2", 321.5})

			Convey("And from the start when the position is unknown", func() {
				engine.posErr = errors.New("property unavailable")
				So(a.Reload(), ShouldBeNil)
				So(engine.loads[2].start, ShouldEqual, 0)
			})
		})

		Convey("Reload before any Load should do nothing", func() {
			So(a.Reload(), ShouldBeNil)
			So(engine.loads, ShouldBeEmpty)
		})

		Convey("The rest should pass through", func() {
			So(a.Seek(10), ShouldBeNil)
			So(a.SetPause(true), ShouldBeNil)
			So(a.Recover(), ShouldBeNil)
			So(a.Close(), ShouldBeNil)

			So(engine.seeks, ShouldResemble, []float64{10})
			So(engine.pauses, ShouldResemble, []bool{true})
			So(engine.recovers, ShouldEqual, 1)
			So(engine.closed, ShouldBeTrue)
		})
	})
}

var _ session.Player = (*Adapter)(nil)
var _ Engine = (*MPV)(nil)
