package session

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vidra-cli/vidra/filesystem"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

func init() {
	filesystem.SetMemMapFs()
}

func foo(src, id, name string, n int) *source.Result {
	return &source.Result{
		Source:     src,
		ID:         id,
		Title:      "Foo",
		Year:       "2020",
		SourceName: name,
		Episodes:   episodes("https://"+src+".example/"+id, n),
	}
}

func TestResolution(t *testing.T) {
	Convey("Given a session fixture", t, func() {
		filesystem.SetMemMapFs()
		f := newFixture()

		alpha := foo("a", "1", "Alpha", 12)
		beta := foo("b", "2", "Beta", 12)
		other := &source.Result{Source: "c", ID: "3", Title: "Bar", Year: "2019", SourceName: "Gamma", Episodes: []string{"x"}}
		f.searcher.results["Foo"] = []*source.Result{alpha, beta, other}

		Convey("When opened without a source or title", func() {
			h := f.open(Params{})

			Convey("Then it should close with ErrMissingParams", func() {
				So(waitDone(h), ShouldBeTrue)
				So(h.State().Phase, ShouldEqual, Closed)
				So(errors.Is(h.State().Err, ErrMissingParams), ShouldBeTrue)
			})
		})

		Convey("When the search finds nothing", func() {
			h := f.open(Params{Title: "Nothing"})

			Convey("Then it should close with ErrNotFound", func() {
				So(waitDone(h), ShouldBeTrue)
				So(errors.Is(h.State().Err, ErrNotFound), ShouldBeTrue)
				So(h.State().Err.Error(), ShouldEqual, "no match found")
			})
		})

		Convey("When the search itself fails", func() {
			f.searcher.errs["Broken"] = errors.New("bad gateway")
			h := f.open(Params{Title: "Broken"})

			Convey("Then the session should close with that error", func() {
				So(waitDone(h), ShouldBeTrue)
				So(h.State().Err, ShouldNotBeNil)
				So(h.State().Progress.Stage, ShouldEqual, progress.Idle)
			})
		})

		Convey("When opened by title with optimization on", func() {
			f.preferer.pick = 1
			h := f.open(Params{Title: "Foo", Year: "2020"})
			Reset(func() { _ = h.Close() })

			var reports []progress.State
			for s := range h.Progress() {
				reports = append(reports, s)
			}
			So(waitReady(h), ShouldBeTrue)
			s := h.State()

			Convey("Then the preferred match should become current", func() {
				So(s.Phase, ShouldEqual, Ready)
				So(s.Current, ShouldEqual, beta)
				So(s.Sources, ShouldResemble, []*source.Result{alpha, beta})
				So(s.EpisodeIndex, ShouldEqual, 0)
			})

			Convey("Then progress should end with ready at 100", func() {
				last := reports[len(reports)-1]
				So(last.Stage, ShouldEqual, progress.Ready)
				So(last.Progress, ShouldEqual, 100)
				So(reports[0].Stage, ShouldEqual, progress.Searching)
			})

			Convey("Then the first episode should be loaded with ad filtering", func() {
				loads := f.player.loaded()
				So(loads, ShouldHaveLength, 1)
				So(loads[0].URL, ShouldEqual, beta.Episodes[0])
				So(loads[0].Transform("a\n#EXT-X-DISCONTINUITY\nb"), ShouldEqual, "a\nb")
			})
		})

		Convey("When a source is requested without asking for preference", func() {
			f.config.Optimize = true
			h := f.open(Params{Title: "Foo", Source: "z"})
			Reset(func() { _ = h.Close() })

			Convey("Then the first match should be used without probing", func() {
				So(waitReady(h), ShouldBeTrue)
				So(h.State().Current, ShouldEqual, alpha)
				So(f.preferer.calls(), ShouldEqual, 0)
			})
		})

		Convey("When the requested episode is out of range", func() {
			f.config.Optimize = false
			h := f.open(Params{Title: "Foo", Episode: 40})
			Reset(func() { _ = h.Close() })

			Convey("Then the first episode should be used", func() {
				So(waitReady(h), ShouldBeTrue)
				So(h.State().EpisodeIndex, ShouldEqual, 0)
			})
		})

		Convey("When opened by a direct link", func() {
			detail := foo("a", "1", "Alpha (detail)", 12)
			f.detailer.results[detail.Key()] = detail

			Convey("And search returns the origin", func() {
				h := f.open(Params{Source: "a", ID: "1"})
				Reset(func() { _ = h.Close() })
				So(waitReady(h), ShouldBeTrue)

				Convey("Then the searched entry should replace the detail", func() {
					So(h.State().Current, ShouldEqual, alpha)
					So(h.State().Sources, ShouldResemble, []*source.Result{alpha, beta})
				})
			})

			Convey("And search returns nothing", func() {
				f.searcher.results["Foo"] = nil
				h := f.open(Params{Source: "a", ID: "1"})
				Reset(func() { _ = h.Close() })
				So(waitReady(h), ShouldBeTrue)

				Convey("Then the detail should be the only source", func() {
					So(h.State().Current, ShouldEqual, detail)
					So(h.State().Sources, ShouldResemble, []*source.Result{detail})
				})
			})

			Convey("And search misses the origin", func() {
				f.searcher.results["Foo"] = []*source.Result{beta}
				h := f.open(Params{Source: "a", ID: "1"})
				Reset(func() { _ = h.Close() })
				So(waitReady(h), ShouldBeTrue)

				Convey("Then the detail should be prepended", func() {
					So(h.State().Current, ShouldEqual, detail)
					So(h.State().Sources, ShouldResemble, []*source.Result{detail, beta})
				})
			})
		})

		Convey("When the direct detail fetch fails", func() {
			h := f.open(Params{Source: "b", ID: "2", Title: "Foo"})
			Reset(func() { _ = h.Close() })
			So(waitReady(h), ShouldBeTrue)

			Convey("Then the search fallback should adopt the requested source", func() {
				So(h.State().Current, ShouldEqual, beta)
				So(f.preferer.calls(), ShouldEqual, 0)
			})

			Convey("Then unrelated titles should be matched away", func() {
				So(h.State().Sources, ShouldResemble, []*source.Result{alpha, beta})
			})
		})

		Convey("When the direct detail fetch fails and preference is asked for", func() {
			h := f.open(Params{Source: "b", ID: "2", Title: "Foo", Prefer: true})
			Reset(func() { _ = h.Close() })
			So(waitReady(h), ShouldBeTrue)

			Convey("Then the preferer should choose among the matches", func() {
				So(f.preferer.calls(), ShouldEqual, 1)
				So(h.State().Current, ShouldEqual, alpha)
				So(h.State().Sources, ShouldResemble, []*source.Result{alpha, beta})
			})
		})

		Convey("When the direct detail fetch fails without a title to search", func() {
			h := f.open(Params{Source: "z", ID: "9"})

			Convey("Then the session should close without searching", func() {
				So(waitDone(h), ShouldBeTrue)
				So(h.State().Err, ShouldNotBeNil)
				So(f.searcher.searched(), ShouldBeEmpty)
			})
		})

		Convey("When the sibling search of a direct link fails", func() {
			detail := foo("a", "1", "Alpha (detail)", 12)
			f.detailer.results[detail.Key()] = detail
			f.searcher.errs["Foo"] = errors.New("bad gateway")

			h := f.open(Params{Source: "a", ID: "1"})
			Reset(func() { _ = h.Close() })
			So(waitReady(h), ShouldBeTrue)

			Convey("Then the fetched detail should be played alone", func() {
				So(h.State().Current, ShouldEqual, detail)
				So(h.State().Sources, ShouldResemble, []*source.Result{detail})
				So(f.searcher.searched(), ShouldResemble, []string{"Foo"})
			})
		})

		Convey("When a play record points past the last episode", func() {
			f.config.Optimize = false
			So(f.store.SavePlayRecord(context.Background(), alpha.Key(), history.PlayRecord{Title: "Foo", Index: 40, PlayTime: 300}), ShouldBeNil)

			h := f.open(Params{Title: "Foo"})
			Reset(func() { _ = h.Close() })
			So(waitReady(h), ShouldBeTrue)

			Convey("Then neither the episode nor the offset should be restored", func() {
				So(h.State().EpisodeIndex, ShouldEqual, 0)
				So(h.State().Resume.IsAbsent(), ShouldBeTrue)
			})
		})

		Convey("When a play record exists", func() {
			f.config.Optimize = false
			So(f.store.SavePlayRecord(context.Background(), alpha.Key(), history.PlayRecord{Title: "Foo", Index: 3, PlayTime: 120}), ShouldBeNil)
			So(f.store.SaveSkipConfig(context.Background(), alpha.Key(), history.SkipConfig{Enable: true, IntroTime: 80}), ShouldBeNil)

			h := f.open(Params{Title: "Foo"})
			Reset(func() { _ = h.Close() })
			So(waitReady(h), ShouldBeTrue)

			Convey("Then the episode, resume offset and skip config should be restored", func() {
				s := h.State()
				So(s.EpisodeIndex, ShouldEqual, 2)
				So(s.Resume.OrElse(0), ShouldEqual, 120)
				So(s.Skip.IntroTime, ShouldEqual, 80)
				So(f.player.loaded()[0].URL, ShouldEqual, alpha.Episodes[2])
			})

			Convey("Then the resume offset should be consumed by the first CanPlay only", func() {
				h.deliver(CanPlay{Duration: 1400})
				h.deliver(CanPlay{Duration: 1400})
				So(f.player.seeked(), ShouldResemble, []float64{120})
				So(h.State().Resume.IsAbsent(), ShouldBeTrue)
			})
		})
	})
}

func TestRestart(t *testing.T) {
	Convey("Given a resolution stuck on a slow search", t, func() {
		filesystem.SetMemMapFs()
		f := newFixture()
		f.config.Optimize = false

		slow := foo("a", "1", "Alpha", 2)
		fast := &source.Result{Source: "b", ID: "2", Title: "Bar", Year: "2021", SourceName: "Beta", Episodes: []string{"bar"}}
		f.searcher.results["Foo"] = []*source.Result{slow}
		f.searcher.results["Bar"] = []*source.Result{fast}
		gate := make(chan struct{})
		f.searcher.gates["Foo"] = gate

		h := f.open(Params{Title: "Foo"})
		Reset(func() { _ = h.Close() })

		Convey("When restarted with another title", func() {
			So(eventually(func() bool { return len(f.searcher.searched()) == 1 }), ShouldBeTrue)
			So(h.Restart(Params{Title: "Bar"}), ShouldBeNil)
			close(gate)

			Convey("Then only the latest resolution should win", func() {
				So(waitReady(h), ShouldBeTrue)
				So(h.State().Current, ShouldEqual, fast)

				time.Sleep(20 * time.Millisecond)
				So(h.State().Current, ShouldEqual, fast)
				for _, m := range f.player.loaded() {
					So(m.URL, ShouldEqual, "bar")
				}
			})
		})
	})
}

func TestPlayback(t *testing.T) {
	Convey("Given a ready session on episode 4 of 4", t, func() {
		filesystem.SetMemMapFs()
		f := newFixture()
		f.config.Optimize = false

		four := foo("a", "1", "Alpha", 4)
		two := foo("b", "2", "Beta", 2)
		f.searcher.results["Foo"] = []*source.Result{four, two}

		h := f.open(Params{Title: "Foo", Episode: 3})
		Reset(func() { _ = h.Close() })
		So(waitReady(h), ShouldBeTrue)
		So(h.State().EpisodeIndex, ShouldEqual, 3)
		ctx := context.Background()

		Convey("ChangeEpisode to the current episode should do nothing", func() {
			h.deliver(Playing{})
			h.deliver(TimeUpdate{Position: 30, Duration: 1400})
			So(h.ChangeEpisode(3), ShouldBeNil)
			h.sync()

			So(f.player.loaded(), ShouldHaveLength, 1)
			So(h.State().Phase, ShouldEqual, Ready)
			_, saved, _ := f.store.PlayRecord(ctx, four.Key())
			So(saved, ShouldBeFalse)
		})

		Convey("ChangeEpisode out of range should do nothing", func() {
			So(h.ChangeEpisode(9), ShouldBeNil)
			So(h.ChangeEpisode(-1), ShouldBeNil)
			So(f.player.loaded(), ShouldHaveLength, 1)
		})

		Convey("ChangeEpisode while playing should save first and then load", func() {
			h.deliver(Playing{})
			h.deliver(TimeUpdate{Position: 30.7, Duration: 1400.2})
			So(h.ChangeEpisode(1), ShouldBeNil)
			h.sync()

			s := h.State()
			So(s.EpisodeIndex, ShouldEqual, 1)
			So(s.Phase, ShouldEqual, EpisodeChanging)
			So(s.Resume.IsAbsent(), ShouldBeTrue)
			So(f.player.loaded()[1].URL, ShouldEqual, four.Episodes[1])

			record, ok, err := f.store.PlayRecord(ctx, four.Key())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(record.Index, ShouldEqual, 4)
			So(record.PlayTime, ShouldEqual, 30)
			So(record.TotalTime, ShouldEqual, 1400)
			So(record.TotalEpisodes, ShouldEqual, 4)
			So(record.SaveTime, ShouldEqual, f.clock.Now().UnixMilli())

			Convey("And further changes should be ignored while it settles", func() {
				So(h.ChangeEpisode(2), ShouldBeNil)
				So(h.State().EpisodeIndex, ShouldEqual, 1)
			})
		})

		Convey("Pausing should save progress unless under a second", func() {
			h.deliver(TimeUpdate{Position: 0.5, Duration: 1400})
			h.deliver(Paused{})
			h.sync()
			_, ok, _ := f.store.PlayRecord(ctx, four.Key())
			So(ok, ShouldBeFalse)

			h.deliver(TimeUpdate{Position: 65, Duration: 1400})
			h.deliver(Paused{})
			h.sync()
			record, ok, _ := f.store.PlayRecord(ctx, four.Key())
			So(ok, ShouldBeTrue)
			So(record.PlayTime, ShouldEqual, 65)
		})

		Convey("Switching to a source with fewer episodes should reset the index", func() {
			So(f.store.SavePlayRecord(ctx, four.Key(), history.PlayRecord{Title: "Foo", Index: 4, PlayTime: 10}), ShouldBeNil)
			h.deliver(TimeUpdate{Position: 300, Duration: 1400})

			So(h.ChangeSource("b", "2", "Foo"), ShouldBeNil)
			h.sync()

			s := h.State()
			So(s.Current, ShouldEqual, two)
			So(s.EpisodeIndex, ShouldEqual, 0)
			So(s.Resume.IsAbsent(), ShouldBeTrue)
			So(s.Phase, ShouldEqual, Ready)

			_, ok, _ := f.store.PlayRecord(ctx, four.Key())
			So(ok, ShouldBeFalse)
			_, ok, _ = f.store.PlayRecord(ctx, two.Key())
			So(ok, ShouldBeFalse)
			So(f.player.loaded()[1].URL, ShouldEqual, two.Episodes[0])
		})

		Convey("Switching to an unknown source should fail without changes", func() {
			before := h.State()
			err := h.ChangeSource("z", "9", "Foo")
			So(errors.Is(err, ErrSourceNotFound), ShouldBeTrue)
			So(h.State().Current, ShouldEqual, before.Current)
			So(f.player.loaded(), ShouldHaveLength, 1)
		})

		Convey("Toggling a favorite should persist it", func() {
			fav, err := h.ToggleFavorite()
			So(err, ShouldBeNil)
			So(fav, ShouldBeTrue)
			h.sync()

			ok, err := f.store.IsFavorited(ctx, four.Key())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			fav, _ = h.ToggleFavorite()
			So(fav, ShouldBeFalse)
			h.sync()
			ok, _ = f.store.IsFavorited(ctx, four.Key())
			So(ok, ShouldBeFalse)
		})

		Convey("The outro on the last episode should pause", func() {
			So(h.UpdateSkipConfig(history.SkipConfig{Enable: true, OutroTime: -60}), ShouldBeNil)
			h.deliver(TimeUpdate{Position: 1350, Duration: 1400})
			So(f.player.pauses(), ShouldResemble, []bool{true})
		})

		Convey("Ended on the last episode should not advance", func() {
			h.deliver(Ended{})
			time.Sleep(30 * time.Millisecond)
			So(h.State().EpisodeIndex, ShouldEqual, 3)
		})

		Convey("Player errors should be recovered by kind", func() {
			h.deliver(Failed{Err: &PlayerError{Kind: KindNetwork, Err: errors.New("timeout")}})
			h.deliver(Failed{Err: &PlayerError{Kind: KindMedia, Err: errors.New("decode")}})
			f.player.mu.Lock()
			So(f.player.reloads, ShouldEqual, 1)
			So(f.player.recovers, ShouldEqual, 1)
			f.player.mu.Unlock()

			Convey("And a fatal error should close the session", func() {
				h.deliver(Failed{Err: &PlayerError{Kind: KindFatal, Err: errors.New("gone")}})
				So(waitDone(h), ShouldBeTrue)
				So(errors.Is(h.State().Err, ErrPlayback), ShouldBeTrue)
				So(h.ChangeEpisode(0), ShouldEqual, ErrClosed)
			})
		})

		Convey("Close should save progress and close the player", func() {
			h.deliver(TimeUpdate{Position: 200, Duration: 1400})
			So(h.Close(), ShouldBeNil)

			record, ok, _ := f.store.PlayRecord(ctx, four.Key())
			So(ok, ShouldBeTrue)
			So(record.PlayTime, ShouldEqual, 200)
			So(f.player.closed, ShouldBeTrue)
			So(h.State().Phase, ShouldEqual, Closed)
		})
	})

	Convey("Given a ready session on the first of several episodes", t, func() {
		filesystem.SetMemMapFs()
		f := newFixture()
		f.config.Optimize = false
		f.config.EpisodeDebounce = time.Millisecond

		four := foo("a", "1", "Alpha", 4)
		same := foo("b", "2", "Beta", 4)
		f.searcher.results["Foo"] = []*source.Result{four, same}

		h := f.open(Params{Title: "Foo"})
		Reset(func() { _ = h.Close() })
		So(waitReady(h), ShouldBeTrue)
		ctx := context.Background()

		Convey("The intro should be skipped at most once per check interval", func() {
			So(h.UpdateSkipConfig(history.SkipConfig{Enable: true, IntroTime: 90}), ShouldBeNil)

			h.deliver(TimeUpdate{Position: 5, Duration: 1400})
			h.deliver(TimeUpdate{Position: 6, Duration: 1400})
			So(f.player.seeked(), ShouldResemble, []float64{90})

			f.clock.Advance(2 * time.Second)
			h.deliver(TimeUpdate{Position: 7, Duration: 1400})
			So(f.player.seeked(), ShouldResemble, []float64{90, 90})
		})

		Convey("The outro should advance to the next episode", func() {
			So(h.UpdateSkipConfig(history.SkipConfig{Enable: true, OutroTime: -60}), ShouldBeNil)
			h.deliver(TimeUpdate{Position: 1350, Duration: 1400})
			So(h.State().EpisodeIndex, ShouldEqual, 1)
		})

		Convey("A disabled empty skip config should be deleted", func() {
			So(h.UpdateSkipConfig(history.SkipConfig{Enable: true, IntroTime: 30}), ShouldBeNil)
			h.sync()
			_, ok, _ := f.store.SkipConfig(ctx, four.Key())
			So(ok, ShouldBeTrue)

			So(h.UpdateSkipConfig(history.SkipConfig{}), ShouldBeNil)
			h.sync()
			_, ok, _ = f.store.SkipConfig(ctx, four.Key())
			So(ok, ShouldBeFalse)
		})

		Convey("Ended should advance after a delay", func() {
			h.deliver(Ended{})
			So(eventually(func() bool { return h.State().EpisodeIndex == 1 }), ShouldBeTrue)
		})

		Convey("Switching to a source with the same episode should resume there", func() {
			So(h.UpdateSkipConfig(history.SkipConfig{Enable: true, IntroTime: 45}), ShouldBeNil)
			h.deliver(TimeUpdate{Position: 300, Duration: 1400})
			So(h.ChangeSource("b", "2", "Foo"), ShouldBeNil)
			h.sync()

			s := h.State()
			So(s.Current, ShouldEqual, same)
			So(s.EpisodeIndex, ShouldEqual, 0)
			So(s.Resume.OrElse(0), ShouldEqual, 300)

			record, ok, _ := f.store.PlayRecord(ctx, same.Key())
			So(ok, ShouldBeTrue)
			So(record.PlayTime, ShouldEqual, 300)
			So(record.SourceName, ShouldEqual, "Beta")

			skip, ok, _ := f.store.SkipConfig(ctx, same.Key())
			So(ok, ShouldBeTrue)
			So(skip.IntroTime, ShouldEqual, 45)
			_, ok, _ = f.store.SkipConfig(ctx, four.Key())
			So(ok, ShouldBeFalse)

			Convey("And CanPlay near the end should clamp the seek", func() {
				h.deliver(CanPlay{Duration: 301})
				So(f.player.seeked(), ShouldResemble, []float64{296})
			})
		})

		Convey("Toggling ad blocking should reload the episode unfiltered", func() {
			h.deliver(TimeUpdate{Position: 42, Duration: 1400})
			h.ToggleAdBlock(false)

			loads := f.player.loaded()
			So(loads, ShouldHaveLength, 2)
			So(loads[1].Transform("#EXT-X-DISCONTINUITY"), ShouldEqual, "#EXT-X-DISCONTINUITY")
			So(h.State().Resume.OrElse(0), ShouldEqual, 42)
		})
	})
}
