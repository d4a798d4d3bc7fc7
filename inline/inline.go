package inline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/matcher"
	"github.com/vidra-cli/vidra/prefer"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/search"
	"github.com/vidra-cli/vidra/source"
)

// Deps are the pipeline stages Run drives. Preferer is only needed with Options.Rank.
type Deps struct {
	Search   *search.Search
	Matcher  *matcher.Matcher
	Preferer *prefer.Preferer
}

func Run(ctx context.Context, deps Deps, options *Options) error {
	if options.Out == nil {
		options.Out = os.Stdout
	}

	// Step 1: search every provider through the aggregator.
	results, err := deps.Search.Run(ctx, options.Query, nil)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	// Step 2: keep the entries that are the same work as the query.
	matched := deps.Matcher.MatchSameWork(source.QueryText(options.Query, options.Year), results)
	log.Infof("inline: %d of %d results match %q", len(matched), len(results), options.Query)

	// Step 3: optionally rank by stream quality.
	candidates, err := rank(ctx, deps, options, matched)
	if err != nil {
		return err
	}

	// Step 4: narrow down to one source if a picker is defined.
	if picker, ok := options.SourcePicker.Get(); ok {
		choice := picker(lo.Map(candidates, func(c *Candidate, _ int) *source.Result { return c.Result }))
		candidates = lo.Filter(candidates, func(c *Candidate, _ int) bool { return c.Result == choice })
	}

	for _, c := range candidates {
		c.Episodes = c.Result.Episodes
		if filter, ok := options.EpisodesFilter.Get(); ok {
			if c.Episodes, err = filter(c.Result.Episodes); err != nil {
				return err
			}
		}
	}

	if options.Json {
		return writeJson(options.Out, candidates, options)
	}

	for _, c := range candidates {
		for _, episode := range c.Episodes {
			if _, err := fmt.Fprintln(options.Out, episode); err != nil {
				return err
			}
		}
	}

	return nil
}

// rank wraps matched sources into candidates. With ranking, sources that failed
// their probe follow the ranked ones in input order.
func rank(ctx context.Context, deps Deps, options *Options, matched []*source.Result) ([]*Candidate, error) {
	candidate := func(r *source.Result) *Candidate {
		return &Candidate{Source: r.SourceName, Result: r}
	}

	if !options.Rank || len(matched) == 0 {
		return lo.Map(matched, func(r *source.Result, _ int) *Candidate { return candidate(r) }), nil
	}

	if deps.Preferer == nil {
		return nil, fmt.Errorf("ranking requires a preferer")
	}

	scored := deps.Preferer.Rank(ctx, matched, nil)
	candidates := make([]*Candidate, 0, len(matched))
	ranked := make(map[*source.Result]bool, len(scored))

	for _, s := range scored {
		c := candidate(s.Source)
		c.Probe = lo.ToPtr(s.Probe)
		c.Score = s.Score
		candidates = append(candidates, c)
		ranked[s.Source] = true
	}

	for _, r := range matched {
		if ranked[r] {
			continue
		}
		c := candidate(r)
		c.Probe = lo.ToPtr(probe.Failed())
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func writeJson(out io.Writer, candidates []*Candidate, options *Options) error {
	data, err := asJson(candidates, options.Query, options.Year)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
