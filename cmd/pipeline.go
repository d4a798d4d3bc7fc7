package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/manifest"
	"github.com/vidra-cli/vidra/matcher"
	"github.com/vidra-cli/vidra/network"
	"github.com/vidra-cli/vidra/player"
	"github.com/vidra-cli/vidra/prefer"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/provider"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/session"
	"github.com/vidra-cli/vidra/source"
	"github.com/vidra-cli/vidra/tui"
)

const relayShutdownTimeout = 2 * time.Second

// pipeline holds the resolution stages shared by every command.
// Its preferer serves one-shot commands; every playback gets its own, so
// probe results never outlive the session that measured them.
type pipeline struct {
	provider *provider.Client
	search   *search.Search
	matcher  *matcher.Matcher
	fetcher  *manifest.HTTPFetcher
	preferer *prefer.Preferer
}

func newPipeline() *pipeline {
	client := provider.Default()
	fetcher := manifest.NewHTTPFetcher(network.Client())

	return &pipeline{
		provider: client,
		search:   search.Default(client),
		matcher:  matcher.Default(),
		fetcher:  fetcher,
		preferer: prefer.New(probe.Default(fetcher)),
	}
}

// sessionDeps wires a session with a preferer of its own.
func (p *pipeline) sessionDeps(store history.Store, play session.Player) (session.Deps, *prefer.Preferer) {
	preferer := prefer.New(probe.Default(p.fetcher))
	return session.Deps{
		Search:   p.search,
		Detailer: p.provider,
		Matcher:  p.matcher,
		Preferer: preferer,
		Store:    store,
		Player:   play,
		Config:   session.ConfigFromViper(),
	}, preferer
}

// playback is a session together with the player, relay and store it owns.
type playback struct {
	*session.Handle

	mpv       *player.MPV
	relay     *player.Relay
	preferer  *prefer.Preferer
	store     history.Store
	closeOnce sync.Once
	closeErr  error
}

func (p *pipeline) openSession(params session.Params) (tui.Session, error) {
	return p.open(context.Background(), params)
}

func (p *pipeline) open(ctx context.Context, params session.Params) (*playback, error) {
	store, err := history.Default()
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	relay := player.NewRelay(p.fetcher)
	if err := relay.Start(viper.GetString(key.PlayerRelayAddr)); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("start relay: %w", err)
	}

	mpv := player.NewMPV(viper.GetString(key.ProviderReferer))
	if err := mpv.Start(ctx); err != nil {
		release(relay, store)
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	deps, preferer := p.sessionDeps(store, player.NewAdapter(mpv, relay))
	handle := session.Open(ctx, params, deps)
	log.Infof("session %s: relay on %s, mpv on %s", handle.ID(), relay.Addr(), mpv.Socket())

	pb := &playback{Handle: handle, mpv: mpv, relay: relay, preferer: preferer, store: store}
	go pb.forward()
	return pb, nil
}

func release(relay *player.Relay, store history.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), relayShutdownTimeout)
	defer cancel()

	if err := relay.Close(ctx); err != nil {
		log.Warnf("close relay: %s", err)
	}
	if err := store.Close(); err != nil {
		log.Warnf("close storage: %s", err)
	}
}

// forward feeds mpv events to the session and closes it when mpv exits.
func (pb *playback) forward() {
	for {
		select {
		case ev := <-pb.mpv.Events():
			pb.Notify(ev)
		case <-pb.mpv.Wait():
			log.Info("mpv exited, closing session")
			_ = pb.Close()
			return
		case <-pb.Done():
			return
		}
	}
}

// Measure probes sources with the preferer the session resolved with,
// reusing what it already measured.
func (pb *playback) Measure(ctx context.Context, sources []*source.Result) map[string]probe.Result {
	return pb.preferer.Measure(ctx, sources)
}

// Close ends the session, then stops the relay and closes the store.
func (pb *playback) Close() error {
	pb.closeOnce.Do(func() {
		pb.closeErr = pb.Handle.Close()
		release(pb.relay, pb.store)
	})
	return pb.closeErr
}
