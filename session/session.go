// Package session drives one playback session: resolving a title to a source,
// episode navigation, resume, source switching, intro/outro skipping and progress saves.
//
// All state is owned by a single actor goroutine. Callers talk to it through a
// Handle and read immutable State snapshots.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/metrics"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

const (
	progressBuffer = 256
	jobBuffer      = 64

	fallbackSaveInterval = 5 * time.Second
)

// Handle controls a running session.
type Handle struct {
	id string

	cmds   chan func(*actor)
	events chan Event

	state atomic.Pointer[State]
	run   atomic.Pointer[run]

	// stopped closes when the actor exits, done once pending saves are written too.
	stopped chan struct{}
	done    chan struct{}
}

// run holds the channels of one resolution.
type run struct {
	progress chan progress.State
	ready    chan struct{}
	finished bool
}

func newRun() *run {
	return &run{
		progress: make(chan progress.State, progressBuffer),
		ready:    make(chan struct{}),
	}
}

// Open starts a session resolving params. It returns immediately.
func Open(ctx context.Context, params Params, deps Deps) *Handle {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	h := &Handle{
		id:      uuid.NewString(),
		cmds:    make(chan func(*actor)),
		events:  make(chan Event, 64),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &actor{
		h:        h,
		deps:     deps,
		cfg:      deps.Config,
		ctx:      ctx,
		cancel:   cancel,
		resolved: make(chan resolution),
		reports:  make(chan report),
		jobs:     make(chan func(context.Context), jobBuffer),
		state:    State{Phase: Resolving, AdBlock: deps.Config.AdBlock},
		phase:    -1,
	}

	log.WithFields(log.Fields{"session": h.id, "source": params.Source, "id": params.ID, "title": params.query()}).Info("opening session")

	go a.persist()
	a.startResolve(params)
	go a.loop()

	return h
}

// ID identifies the session in logs.
func (h *Handle) ID() string { return h.id }

// State returns the latest snapshot.
func (h *Handle) State() State { return *h.state.Load() }

// Progress returns the progress of the current resolution.
// The channel is closed when that resolution ends.
func (h *Handle) Progress() <-chan progress.State { return h.run.Load().progress }

// Ready is closed once the current resolution succeeds.
func (h *Handle) Ready() <-chan struct{} { return h.run.Load().ready }

// Done is closed once the session is closed and its pending saves are written.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Notify delivers a player event.
func (h *Handle) Notify(ev Event) {
	select {
	case h.events <- ev:
	case <-h.stopped:
	}
}

// ChangeEpisode switches to the 0-based episode n.
// It does nothing when n is out of range, already playing, or a change is in progress.
func (h *Handle) ChangeEpisode(n int) error {
	var err error
	if !h.do(func(a *actor) { err = a.changeEpisodeCmd(n) }) {
		return ErrClosed
	}
	return err
}

// ChangeSource switches to another source of the matched set.
func (h *Handle) ChangeSource(src, id, title string) error {
	var err error
	if !h.do(func(a *actor) { err = a.changeSource(source.Ref{Source: src, ID: id}, title) }) {
		return ErrClosed
	}
	return err
}

// UpdateSkipConfig replaces the skip setting of the current source.
func (h *Handle) UpdateSkipConfig(cfg history.SkipConfig) error {
	var err error
	if !h.do(func(a *actor) { err = a.updateSkip(cfg) }) {
		return ErrClosed
	}
	return err
}

// ToggleAdBlock turns playlist ad filtering on or off, reloading the current episode.
func (h *Handle) ToggleAdBlock(on bool) {
	h.do(func(a *actor) { a.toggleAdBlock(on) })
}

// ToggleFavorite flips the favorite mark of the current source and returns the new value.
func (h *Handle) ToggleFavorite() (bool, error) {
	var (
		fav bool
		err error
	)
	if !h.do(func(a *actor) { fav, err = a.toggleFavorite() }) {
		return false, ErrClosed
	}
	return fav, err
}

// Restart resolves params from scratch, cancelling any resolution in flight.
func (h *Handle) Restart(params Params) error {
	if !h.do(func(a *actor) { a.restart(params) }) {
		return ErrClosed
	}
	return nil
}

// Close saves progress, closes the player and ends the session.
func (h *Handle) Close() error {
	var err error
	if !h.do(func(a *actor) { err = a.close(nil) }) {
		<-h.done
		return nil
	}
	<-h.done
	return err
}

// do runs fn on the actor and waits for it. It reports false when the session has stopped.
func (h *Handle) do(fn func(*actor)) bool {
	reply := make(chan struct{})
	select {
	case h.cmds <- func(a *actor) { defer close(reply); fn(a) }:
	case <-h.stopped:
		return false
	}
	<-reply
	return true
}

type report struct {
	gen   uint64
	state progress.State
}

type actor struct {
	h    *Handle
	deps Deps
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc

	state State
	phase Phase
	cur   *run

	gen           uint64
	params        Params
	cancelResolve context.CancelFunc
	resolved      chan resolution
	reports       chan report

	jobs chan func(context.Context)

	position float64
	duration float64
	playing  bool

	lastSkipCheck time.Time
	saveTicker    *time.Ticker
	debounce      *time.Timer
	ended         *time.Timer
	endedTarget   int
}

func (a *actor) loop() {
	defer a.shutdown()

	for a.state.Phase != Closed {
		select {
		case fn := <-a.h.cmds:
			fn(a)
		case ev := <-a.h.events:
			a.handle(ev)
		case r := <-a.reports:
			a.onReport(r)
		case res := <-a.resolved:
			a.onResolved(res)
		case <-tickerC(a.saveTicker):
			if a.playing {
				a.save()
			}
		case <-timerC(a.debounce):
			a.debounce = nil
			if a.state.Phase == EpisodeChanging {
				a.set(a.state.withPhase(Ready))
			}
		case <-timerC(a.ended):
			a.ended = nil
			a.changeEpisode(a.endedTarget)
		case <-a.ctx.Done():
			_ = a.close(nil)
		}
	}
}

func (a *actor) shutdown() {
	stopTimer(a.debounce)
	stopTimer(a.ended)
	if a.saveTicker != nil {
		a.saveTicker.Stop()
	}
	if a.cancelResolve != nil {
		a.cancelResolve()
	}
	a.cancel()

	close(a.h.stopped)
	close(a.jobs)
}

// persist writes queued saves in order. It outlives the actor until the queue drains.
func (a *actor) persist() {
	defer close(a.h.done)

	ctx := context.WithoutCancel(a.ctx)
	for job := range a.jobs {
		job(ctx)
	}
}

func (a *actor) enqueue(job func(context.Context)) {
	a.jobs <- job
}

// set replaces the state and publishes it.
func (a *actor) set(s State) {
	a.state = s
	a.publish()
}

func (a *actor) publish() {
	s := a.state
	a.h.state.Store(&s)

	if s.Phase != a.phase {
		if a.phase >= 0 {
			metrics.SessionPhase.WithLabelValues(a.phase.String()).Dec()
		}
		if s.Phase != Closed {
			metrics.SessionPhase.WithLabelValues(s.Phase.String()).Inc()
		}
		log.Debugf("session %s: %s -> %s", a.h.id, a.phase, s.Phase)
		a.phase = s.Phase
	}
}

func (a *actor) emit(s progress.State) {
	if a.cur.finished {
		return
	}
	select {
	case a.cur.progress <- s:
	default:
	}
}

func (a *actor) finishRun(ready bool) {
	if a.cur.finished {
		return
	}
	a.cur.finished = true
	close(a.cur.progress)
	if ready {
		close(a.cur.ready)
	}
}

// Resolution

func (a *actor) startResolve(params Params) {
	if a.cancelResolve != nil {
		a.cancelResolve()
	}
	if a.cur != nil {
		a.finishRun(false)
	}

	a.gen++
	gen := a.gen
	a.params = params
	a.cur = newRun()
	a.h.run.Store(a.cur)

	ctx, cancel := context.WithCancel(a.ctx)
	a.cancelResolve = cancel

	a.set(State{Phase: Resolving, AdBlock: a.state.AdBlock})

	r := &resolver{
		deps: a.deps,
		report: func(s progress.State) {
			select {
			case a.reports <- report{gen: gen, state: s}:
			case <-ctx.Done():
			case <-a.h.stopped:
			}
		},
	}

	go func() {
		res := r.run(ctx, params)
		res.gen = gen
		select {
		case a.resolved <- res:
		case <-a.h.stopped:
		}
	}()
}

func (a *actor) onReport(r report) {
	if r.gen != a.gen || a.state.Phase != Resolving {
		return
	}
	s := a.state
	s.Progress = r.state
	a.set(s)
	a.emit(r.state)
}

func (a *actor) onResolved(res resolution) {
	if res.gen != a.gen || a.state.Phase != Resolving {
		return
	}
	a.cancelResolve()

	if res.err != nil {
		log.Errorf("session %s: resolution failed: %s", a.h.id, res.err)
		_ = a.close(res.err)
		return
	}

	s := a.state
	s.Phase = Ready
	s.Current = res.current
	s.Sources = res.sources
	s.EpisodeIndex = res.episode
	s.Resume = res.resume
	s.Skip = res.skip
	s.Favorited = res.fav
	s.Progress = progress.State{
		Stage:             progress.Ready,
		Progress:          readyDone,
		Message:           "ready",
		Detail:            res.current.SourceName,
		CurrentSourceName: res.current.SourceName,
	}
	a.set(s)

	log.WithFields(log.Fields{
		"session": a.h.id,
		"source":  res.current.Key(),
		"episode": res.episode + 1,
		"sources": len(res.sources),
	}).Info("session ready")

	a.startSaveTicker()
	a.position, a.duration, a.playing = 0, 0, false
	a.load()

	// Ready fires once the player has the first episode.
	if a.state.Phase != Closed {
		a.emit(s.Progress)
		a.finishRun(true)
	}
}

func (a *actor) restart(params Params) {
	if a.playing {
		a.save()
	}
	stopTimer(a.debounce)
	stopTimer(a.ended)
	a.debounce, a.ended = nil, nil
	a.position, a.duration, a.playing = 0, 0, false
	a.startResolve(params)
}

func (a *actor) startSaveTicker() {
	if a.saveTicker != nil {
		return
	}

	interval := a.cfg.SaveInterval
	if interval <= 0 && a.deps.Store != nil {
		interval = a.deps.Store.SaveInterval()
	}
	if interval <= 0 {
		interval = fallbackSaveInterval
	}
	a.saveTicker = time.NewTicker(interval)
}

// Playback

func (a *actor) load() {
	url, ok := a.state.Episode()
	if !ok || a.deps.Player == nil {
		return
	}

	current := a.state.Current
	title := current.Title
	if !current.IsMovie() {
		title = fmt.Sprintf("%s - %d", current.Title, a.state.EpisodeIndex+1)
	}

	media := Media{
		URL:       url,
		Title:     title,
		Episode:   a.state.EpisodeIndex,
		Transform: manifest.ForConfig(a.state.AdBlock),
	}

	if err := a.deps.Player.Load(a.ctx, media); err != nil {
		_ = a.close(fmt.Errorf("%w: load %s: %w", ErrPlayback, url, err))
	}
}

func (a *actor) changeEpisodeCmd(n int) error {
	if a.state.Phase == Resolving {
		return ErrNotReady
	}
	a.changeEpisode(n)
	return nil
}

func (a *actor) changeEpisode(n int) {
	s := a.state
	if s.Phase != Ready || !s.inRange(n) || n == s.EpisodeIndex {
		return
	}

	if a.playing {
		a.save()
	}

	stopTimer(a.ended)
	a.ended = nil
	a.position, a.duration = 0, 0

	a.set(s.withEpisode(n).withPhase(EpisodeChanging))

	stopTimer(a.debounce)
	a.debounce = time.NewTimer(a.cfg.EpisodeDebounce)

	a.load()
}

func (a *actor) changeSource(ref source.Ref, title string) error {
	s := a.state
	if s.Phase == Resolving {
		return ErrNotReady
	}

	target, ok := source.Find(s.Sources, ref)
	if !ok {
		return fmt.Errorf("%s: %w", ref.Key(), ErrSourceNotFound)
	}
	if ref.Matches(s.Current) {
		return nil
	}

	position, duration := a.position, a.duration
	oldKey, newKey := s.Current.Key(), target.Key()
	skip := s.Skip

	a.set(s.withPhase(SourceChanging))

	store := a.deps.Store
	if store != nil {
		a.enqueue(func(ctx context.Context) {
			if err := store.DeletePlayRecord(ctx, oldKey); err != nil {
				log.Warnf("session: delete play record %s: %s", oldKey, err)
			}
			if err := store.DeleteSkipConfig(ctx, oldKey); err != nil {
				log.Warnf("session: delete skip config %s: %s", oldKey, err)
			}
			if skip.Empty() {
				return
			}
			if err := store.SaveSkipConfig(ctx, newKey, skip); err != nil {
				log.Warnf("session: save skip config %s: %s", newKey, err)
			}
		})
	}

	next := s.withSource(target, position).withPhase(SourceChanging)
	if next.Current.Title == "" && title != "" {
		clone := *next.Current
		clone.Title = title
		next.Current = &clone
	}
	a.state = next

	if next.EpisodeIndex == s.EpisodeIndex {
		a.saveAt(position, duration)
	}

	log.WithFields(log.Fields{"session": a.h.id, "from": oldKey, "to": newKey, "episode": next.EpisodeIndex + 1}).Info("switching source")

	a.refreshFavorite(newKey)

	stopTimer(a.ended)
	a.ended = nil
	a.position, a.duration, a.playing = 0, 0, false
	a.load()

	if a.state.Phase == SourceChanging {
		a.set(a.state.withPhase(Ready))
	}
	return nil
}

// refreshFavorite reads the favorite mark of key off the actor and applies it if key is still current.
func (a *actor) refreshFavorite(key string) {
	store := a.deps.Store
	if store == nil {
		return
	}

	a.enqueue(func(ctx context.Context) {
		fav, err := store.IsFavorited(ctx, key)
		if err != nil {
			log.Warnf("session: load favorite %s: %s", key, err)
			return
		}
		go func() {
			apply := func(a *actor) {
				if a.state.Current != nil && a.state.Current.Key() == key {
					s := a.state
					s.Favorited = fav
					a.set(s)
				}
			}
			select {
			case a.h.cmds <- apply:
			case <-a.h.stopped:
			}
		}()
	})
}

func (a *actor) updateSkip(cfg history.SkipConfig) error {
	s := a.state
	if s.Current == nil {
		return ErrNotReady
	}

	s.Skip = cfg
	a.set(s)

	store, key := a.deps.Store, s.Current.Key()
	if store == nil {
		return nil
	}

	a.enqueue(func(ctx context.Context) {
		var err error
		if cfg.Empty() {
			err = store.DeleteSkipConfig(ctx, key)
		} else {
			err = store.SaveSkipConfig(ctx, key, cfg)
		}
		if err != nil {
			log.Warnf("session: update skip config %s: %s", key, err)
		}
	})
	return nil
}

func (a *actor) toggleAdBlock(on bool) {
	s := a.state
	if s.AdBlock == on {
		return
	}
	s.AdBlock = on

	if s.Current == nil || s.Phase == Resolving {
		a.set(s)
		return
	}

	if s.Resume.IsAbsent() && a.position > 1 {
		s.Resume = mo.Some(a.position)
	}
	a.set(s)

	a.position, a.duration = 0, 0
	a.load()
}

func (a *actor) toggleFavorite() (bool, error) {
	s := a.state
	if s.Current == nil {
		return false, ErrNotReady
	}

	s.Favorited = !s.Favorited
	a.set(s)

	store := a.deps.Store
	if store == nil {
		return s.Favorited, nil
	}

	key, fav := s.Current.Key(), s.Favorited
	record := history.Favorite{
		Title:         s.Current.Title,
		SourceName:    s.Current.SourceName,
		Year:          s.Current.Year,
		Cover:         s.Current.Poster,
		TotalEpisodes: len(s.Current.Episodes),
		SaveTime:      a.deps.Now().UnixMilli(),
		SearchTitle:   a.params.SearchTitle,
	}
	a.enqueue(func(ctx context.Context) {
		var err error
		if fav {
			err = store.SaveFavorite(ctx, key, record)
		} else {
			err = store.DeleteFavorite(ctx, key)
		}
		if err != nil {
			log.Warnf("session: toggle favorite %s: %s", key, err)
		}
	})

	return fav, nil
}

// Events

func (a *actor) handle(ev Event) {
	switch a.state.Phase {
	case Ready, EpisodeChanging, SourceChanging:
	default:
		return
	}

	switch ev := ev.(type) {
	case TimeUpdate:
		a.position = ev.Position
		if ev.Duration > 0 {
			a.duration = ev.Duration
		}
		a.checkSkip()
	case CanPlay:
		if ev.Duration > 0 {
			a.duration = ev.Duration
		}
		a.resume()
	case Playing:
		a.playing = true
	case Paused:
		a.playing = false
		a.save()
	case Ended:
		a.playing = false
		if a.state.HasNext() {
			stopTimer(a.ended)
			a.endedTarget = a.state.EpisodeIndex + 1
			a.ended = time.NewTimer(a.cfg.EndedDelay)
		}
	case Failed:
		a.recover(ev.Err)
	}
}

func (a *actor) resume() {
	s, resume := a.state.consumeResume()
	a.set(s)

	target, ok := resume.Get()
	if !ok || target <= 0 {
		return
	}
	if a.duration > 0 && target >= a.duration-2 {
		target = max(0, a.duration-5)
	}

	if err := a.deps.Player.Seek(target); err != nil {
		log.Warnf("session: resume to %.0fs: %s", target, err)
		return
	}
	a.position = target
}

func (a *actor) checkSkip() {
	skip := a.state.Skip
	if !skip.Enable {
		return
	}

	now := a.deps.Now()
	if now.Sub(a.lastSkipCheck) < a.cfg.SkipCheckInterval {
		return
	}
	a.lastSkipCheck = now

	if skip.IntroTime > 0 && a.position < skip.IntroTime {
		if err := a.deps.Player.Seek(skip.IntroTime); err != nil {
			log.Warnf("session: skip intro: %s", err)
		} else {
			a.position = skip.IntroTime
		}
	}

	if skip.OutroTime < 0 && a.duration > 0 && a.position > a.duration+skip.OutroTime {
		if a.state.HasNext() {
			a.changeEpisode(a.state.EpisodeIndex + 1)
			return
		}
		if err := a.deps.Player.SetPause(true); err != nil {
			log.Warnf("session: pause at outro: %s", err)
		}
	}
}

func (a *actor) recover(perr *PlayerError) {
	if perr == nil {
		return
	}
	log.Warnf("session %s: player %s", a.h.id, perr)

	var err error
	switch Recovery(perr.Kind) {
	case ActionReload:
		err = a.deps.Player.Reload()
	case ActionRecover:
		err = a.deps.Player.Recover()
	default:
		_ = a.close(fmt.Errorf("%w: %w", ErrPlayback, perr))
		return
	}

	if err != nil {
		_ = a.close(fmt.Errorf("%w: %w", ErrPlayback, err))
	}
}

// Persistence

func (a *actor) save() {
	a.saveAt(a.position, a.duration)
}

// saveAt queues a play record for the current source and episode.
// Positions under a second and unknown durations are not saved.
func (a *actor) saveAt(position, duration float64) {
	s := a.state
	store := a.deps.Store
	if !a.cfg.WriteHistory || store == nil || s.Current == nil {
		return
	}
	if position < 1 || duration <= 0 {
		return
	}

	title := s.Current.Title
	if title == "" {
		title = a.params.Title
	}
	if title == "" {
		return
	}

	total := len(s.Current.Episodes)
	if total == 0 {
		total = 1
	}

	key := s.Current.Key()
	record := history.PlayRecord{
		Title:         title,
		SourceName:    s.Current.SourceName,
		Year:          s.Current.Year,
		Cover:         s.Current.Poster,
		Index:         s.EpisodeIndex + 1,
		TotalEpisodes: total,
		PlayTime:      float64(int64(position)),
		TotalTime:     float64(int64(duration)),
		SaveTime:      a.deps.Now().UnixMilli(),
		SearchTitle:   a.params.SearchTitle,
	}

	a.enqueue(func(ctx context.Context) {
		if err := store.SavePlayRecord(ctx, key, record); err != nil {
			log.Warnf("session: save play record %s: %s", key, err)
		}
	})
}

// close ends the session. cause is recorded on the final state when non-nil.
func (a *actor) close(cause error) error {
	if a.state.Phase == Closed {
		return nil
	}

	if a.state.Phase != Resolving {
		a.save()
	}
	if a.cancelResolve != nil {
		a.cancelResolve()
	}

	var err error
	if a.deps.Player != nil {
		err = a.deps.Player.Close()
	}

	s := a.state
	s.Phase = Closed
	s.Err = cause
	if cause != nil {
		s.Progress = progress.State{Stage: progress.Idle, Message: "failed", Detail: cause.Error()}
		a.emit(s.Progress)
	}
	a.finishRun(false)
	a.set(s)

	log.WithFields(log.Fields{"session": a.h.id}).Info("session closed")
	return err
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
