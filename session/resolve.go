package session

import (
	"context"
	"fmt"

	"github.com/samber/mo"
	"github.com/vidra-cli/vidra/history"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

// Progress bands of the detail fetch.
const (
	detailStart = 70
	detailDone  = 90
	readyDone   = 100
)

// resolution is the outcome of one resolve run, tagged with its generation.
type resolution struct {
	gen uint64

	current *source.Result
	sources []*source.Result
	episode int
	resume  mo.Option[float64]
	skip    history.SkipConfig
	fav     bool

	err error
}

type resolver struct {
	deps   Deps
	report progress.Reporter
}

func (r *resolver) run(ctx context.Context, params Params) resolution {
	if !params.direct() && params.query() == "" {
		return resolution{err: ErrMissingParams}
	}

	var (
		current *source.Result
		sources []*source.Result
		err     error
	)
	if params.direct() {
		current, sources, err = r.direct(ctx, params)
	} else {
		current, sources, err = r.fresh(ctx, params)
	}
	if err != nil {
		return resolution{err: err}
	}

	res := resolution{
		current: current,
		sources: sources,
		episode: params.Episode,
	}
	if res.episode < 0 || res.episode >= len(current.Episodes) {
		res.episode = 0
	}

	r.restore(ctx, &res)
	return res
}

// direct opens a known entry and gathers the other sources of the same work.
// A failed detail fetch falls back to a fresh search. A failed sibling search
// keeps the fetched detail as the only source.
func (r *resolver) direct(ctx context.Context, params Params) (*source.Result, []*source.Result, error) {
	key := source.Key(params.Source, params.ID)

	detail, err := r.detail(ctx, params.Source, params.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if params.query() == "" {
			return nil, nil, err
		}
		log.Warnf("session: direct open of %s failed, searching instead: %s", key, err)
		return r.fresh(ctx, params)
	}

	results, err := r.deps.Search.Run(ctx, detail.Title, r.report)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		log.Warnf("session: sibling search for %s failed, playing it alone: %s", key, err)
		return detail, []*source.Result{detail}, nil
	}
	if len(results) == 0 {
		return detail, []*source.Result{detail}, nil
	}

	matched := r.deps.Matcher.MatchWithOrigin(detail, results)
	current, _ := source.Find(matched, detail.Ref())
	return current, matched, nil
}

// fresh searches by title and picks a source among the matches.
// A requested source found in the results is kept among the matches and
// adopted unless preference was asked for.
func (r *resolver) fresh(ctx context.Context, params Params) (*source.Result, []*source.Result, error) {
	results, err := r.deps.Search.Run(ctx, params.query(), r.report)
	if err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, nil, ErrNotFound
	}

	title := params.Title
	if title == "" {
		title = params.SearchTitle
	}
	q := source.QueryText(title, params.Year)
	ref := source.Ref{Source: params.Source, ID: params.ID}
	requested, found := source.Find(results, ref)
	if found {
		q.Origin = mo.Some(ref)
	}
	matched := r.deps.Matcher.MatchSameWork(q, results)

	explicit := params.Source != "" || params.ID != ""
	if r.deps.Config.Optimize && r.deps.Preferer != nil && (!explicit || params.Prefer) {
		if best := r.deps.Preferer.Prefer(ctx, matched, r.report); best != nil {
			return best, matched, ctx.Err()
		}
	}

	if found {
		return requested, matched, nil
	}
	return matched[0], matched, nil
}

func (r *resolver) detail(ctx context.Context, src, id string) (*source.Result, error) {
	if timeout := r.deps.Config.DetailTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.report.Report(progress.State{
		Stage:    progress.Fetching,
		Progress: detailStart,
		Message:  "fetching details",
		Detail:   "connecting",
	})

	detail, err := r.deps.Detailer.Detail(ctx, src, id, func(read, total int64) {
		if p, ok := progress.Percent(read, total); ok {
			r.report.Report(detailStage(p))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", source.Key(src, id), err)
	}
	if detail == nil {
		return nil, fmt.Errorf("detail %s: %w", source.Key(src, id), ErrNotFound)
	}

	r.report.Report(progress.State{
		Stage:    progress.Fetching,
		Progress: detailDone,
		Message:  "details loaded",
		Detail:   detail.Title,
	})
	return detail, nil
}

// detailStage maps a 0-100 byte percentage onto the detail band.
func detailStage(p float64) progress.State {
	s := progress.State{Stage: progress.Fetching, Message: "fetching details"}
	switch {
	case p < 50:
		s.Progress, s.Detail = detailStart+p*0.3, "downloading"
	case p < 80:
		s.Progress, s.Detail = 75+(p-50)*0.2, "parsing"
	default:
		s.Progress, s.Detail = 85, "almost done"
	}
	return s
}

// restore loads the saved state of the chosen source. Failures are logged and ignored.
func (r *resolver) restore(ctx context.Context, res *resolution) {
	store := r.deps.Store
	if store == nil {
		return
	}
	key := res.current.Key()

	if record, ok, err := store.PlayRecord(ctx, key); err != nil {
		log.Warnf("session: load play record %s: %s", key, err)
	} else if ok {
		if index := record.Index - 1; index >= 0 && index < len(res.current.Episodes) {
			res.episode = index
			res.resume = mo.Some(record.PlayTime)
		}
	}

	if skip, ok, err := store.SkipConfig(ctx, key); err != nil {
		log.Warnf("session: load skip config %s: %s", key, err)
	} else if ok {
		res.skip = skip
	}

	fav, err := store.IsFavorited(ctx, key)
	if err != nil {
		log.Warnf("session: load favorite %s: %s", key, err)
	}
	res.fav = fav
}
