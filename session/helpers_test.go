package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/matcher"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/source"
)

const waitTimeout = 3 * time.Second

// deliver runs a player event on the actor and waits for it.
func (h *Handle) deliver(ev Event) {
	h.do(func(a *actor) { a.handle(ev) })
}

// sync waits until every save queued so far is written.
func (h *Handle) sync() {
	barrier := make(chan struct{})
	if !h.do(func(a *actor) { a.enqueue(func(context.Context) { close(barrier) }) }) {
		<-h.done
		return
	}
	<-barrier
}

func waitReady(h *Handle) bool {
	select {
	case <-h.Ready():
		return true
	case <-h.Done():
		return false
	case <-time.After(waitTimeout):
		return false
	}
}

func waitDone(h *Handle) bool {
	select {
	case <-h.Done():
		return true
	case <-time.After(waitTimeout):
		return false
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func episodes(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + "/" + string(rune('a'+i)) + ".m3u8"
	}
	return out
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]*source.Result
	errs    map[string]error
	gates   map[string]chan struct{}
	queries []string
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: map[string][]*source.Result{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, progress source.ByteProgress) ([]*source.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.gates[query]
	results, err := f.results[query], f.errs[query]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if progress != nil {
		progress(50, 100)
		progress(100, 100)
	}
	return results, err
}

func (f *fakeSearcher) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeDetailer struct {
	results map[string]*source.Result
}

func (f *fakeDetailer) Detail(_ context.Context, src, id string, progress source.ByteProgress) (*source.Result, error) {
	r, ok := f.results[source.Key(src, id)]
	if !ok {
		return nil, errors.New("gone upstream")
	}
	if progress != nil {
		progress(100, 100)
	}
	return r, nil
}

type fakePreferer struct {
	mu     sync.Mutex
	pick   int
	called int
}

func (f *fakePreferer) Prefer(_ context.Context, sources []*source.Result, report progress.Reporter) *source.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	report.Report(progress.State{Stage: progress.Completed, Progress: 70})
	return sources[f.pick]
}

func (f *fakePreferer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

type fakePlayer struct {
	mu       sync.Mutex
	loads    []Media
	seeks    []float64
	paused   []bool
	reloads  int
	recovers int
	closed   bool
}

func (p *fakePlayer) Load(_ context.Context, m Media) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, m)
	return nil
}

func (p *fakePlayer) Seek(s float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, s)
	return nil
}

func (p *fakePlayer) SetPause(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = append(p.paused, paused)
	return nil
}

func (p *fakePlayer) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *fakePlayer) Recover() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recovers++
	return nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) loaded() []Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Media(nil), p.loads...)
}

func (p *fakePlayer) seeked() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...)
}

func (p *fakePlayer) pauses() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.paused...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	searcher *fakeSearcher
	detailer *fakeDetailer
	preferer *fakePreferer
	player   *fakePlayer
	store    *history.FileStore
	clock    *fakeClock
	config   Config
}

func newFixture() *fixture {
	cfg := DefaultConfig()
	cfg.SaveInterval = time.Hour
	cfg.EndedDelay = 10 * time.Millisecond
	cfg.EpisodeDebounce = time.Hour

	return &fixture{
		searcher: newFakeSearcher(),
		detailer: &fakeDetailer{results: map[string]*source.Result{}},
		preferer: &fakePreferer{},
		player:   &fakePlayer{},
		store:    history.NewFileStore("/data/history.json", "/data/skip.json", "/data/favorites.json"),
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		config:   cfg,
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Search:   search.New(f.searcher, 0),
		Detailer: f.detailer,
		Matcher:  matcher.New("[［(（【", "]］)）】"),
		Preferer: f.preferer,
		Store:    f.store,
		Player:   f.player,
		Config:   f.config,
		Now:      f.clock.Now,
	}
}

func (f *fixture) open(params Params) *Handle {
	return Open(context.Background(), params, f.deps())
}
