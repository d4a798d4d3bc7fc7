// Package prefer probes the candidate sources of a title and picks the best one.
package prefer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

const (
	// Start is the progress at which preference begins.
	Start = 35
	// Analyze is reported once every batch is probed.
	Analyze = 65
	// Done is the progress of the final preference report.
	Done = 70

	batchBand = 20
	batches   = 2
)

// Prober probes one stream. *probe.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, key, manifestURL string) probe.Result
}

// Scored is a source with its probe result and score.
type Scored struct {
	Source *source.Result `json:"source"`
	Probe  probe.Result   `json:"probe"`
	Score  float64        `json:"score"`
}

// Preferer ranks sources by probing them in two sequential batches.
type Preferer struct {
	prober Prober
}

// New creates a Preferer.
func New(prober Prober) *Preferer {
	return &Preferer{prober: prober}
}

// Prefer returns the best of sources. It never fails: when every probe fails the
// first source is returned. It returns nil only for an empty input.
func (p *Preferer) Prefer(ctx context.Context, sources []*source.Result, report progress.Reporter) *source.Result {
	switch len(sources) {
	case 0:
		return nil
	case 1:
		only := sources[0]
		report.Report(progress.State{
			Stage:             progress.Completed,
			Progress:          Done,
			Message:           "using the only available source",
			Detail:            fmt.Sprintf("using %s", only.SourceName),
			TestedSources:     1,
			TotalSources:      1,
			CurrentSourceName: only.SourceName,
		})
		return only
	}

	ranked := p.Rank(ctx, sources, report)
	if len(ranked) == 0 {
		report.Report(progress.State{
			Stage:        progress.Completed,
			Progress:     Done,
			Message:      "all probes failed",
			Detail:       "using the default source",
			TotalSources: len(sources),
		})
		return sources[0]
	}

	best := ranked[0]
	report.Report(progress.State{
		Stage:             progress.Completed,
		Progress:          Done,
		Message:           "best source selected",
		Detail:            fmt.Sprintf("%s (score: %.2f)", best.Source.SourceName, best.Score),
		TestedSources:     len(ranked),
		TotalSources:      len(sources),
		CurrentSourceName: best.Source.SourceName,
	})

	log.WithFields(log.Fields{
		"source": best.Source.Key(),
		"score":  best.Score,
		"probe":  best.Probe.String(),
	}).Info("preferred source")

	return best.Source
}

// Rank probes sources and returns the ones that answered, best first.
// Sources with equal scores keep their input order.
func (p *Preferer) Rank(ctx context.Context, sources []*source.Result, report progress.Reporter) []Scored {
	report.Report(progress.State{
		Stage:        progress.Testing,
		Progress:     Start,
		Message:      "testing source quality",
		Detail:       fmt.Sprintf("preparing to test %d sources", len(sources)),
		TotalSources: len(sources),
	})

	results := p.fanOut(ctx, sources, report)

	report.Report(progress.State{
		Stage:         progress.Analyzing,
		Progress:      Analyze,
		Message:       "analyzing source quality",
		Detail:        "scoring sources",
		TestedSources: len(results),
		TotalSources:  len(sources),
	})

	scored := make([]Scored, 0, len(results))
	for i, s := range sources {
		r, ok := results[i]
		if !ok {
			continue
		}
		scored = append(scored, Scored{Source: s, Probe: r, Score: Score(r)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

// Measure probes every source with the same batching as Rank, without scoring.
// The result is keyed by source key and includes failed probes.
func (p *Preferer) Measure(ctx context.Context, sources []*source.Result) map[string]probe.Result {
	out := make(map[string]probe.Result, len(sources))
	for i, r := range p.fanOut(ctx, sources, nil) {
		out[sources[i].Key()] = r
	}
	for _, s := range sources {
		if _, ok := out[s.Key()]; !ok {
			out[s.Key()] = probe.Failed()
		}
	}
	return out
}

// Target returns the stream probed for a source: the second episode of a series,
// the only one of a movie.
func Target(s *source.Result) (string, bool) {
	switch {
	case len(s.Episodes) > 1:
		return s.Episodes[1], true
	case len(s.Episodes) == 1:
		return s.Episodes[0], true
	default:
		return "", false
	}
}

// fanOut probes sources in sequential batches of ceil(n/2), each batch on a pool
// sized to the batch. The result is keyed by index and holds successful probes only.
func (p *Preferer) fanOut(ctx context.Context, sources []*source.Result, report progress.Reporter) map[int]probe.Result {
	n := len(sources)
	results := make(map[int]probe.Result, n)
	if n == 0 {
		return results
	}

	size := int(math.Ceil(float64(n) / batches))
	total := int(math.Ceil(float64(n) / float64(size)))

	pool, err := ants.NewPool(size)
	if err != nil {
		log.Errorf("prefer: worker pool: %s", err)
		return results
	}
	defer pool.Release()

	var mu sync.Mutex
	for start, batch := 0, 0; start < n; start, batch = start+size, batch+1 {
		end := min(start+size, n)

		report.Report(progress.State{
			Stage:         progress.Testing,
			Progress:      Start + float64(batch)/float64(total)*batchBand,
			Message:       "testing source quality",
			Detail:        fmt.Sprintf("testing batch %d/%d", batch+1, total),
			TestedSources: start,
			TotalSources:  n,
		})

		var (
			wg        sync.WaitGroup
			succeeded int
		)
		for i := start; i < end; i++ {
			target, ok := Target(sources[i])
			if !ok {
				continue
			}

			s := sources[i]
			wg.Add(1)
			task := func() {
				defer wg.Done()
				r := p.prober.Probe(ctx, s.Key(), target)
				if r.HasError {
					return
				}
				mu.Lock()
				results[i] = r
				succeeded++
				mu.Unlock()
			}

			if err := pool.Submit(task); err != nil {
				log.Warnf("prefer: submit probe for %s: %s", s.Key(), err)
				wg.Done()
			}
		}
		wg.Wait()

		report.Report(progress.State{
			Stage:         progress.Testing,
			Progress:      Start + float64(batch+1)/float64(total)*batchBand,
			Message:       "testing source quality",
			Detail:        fmt.Sprintf("batch %d/%d done, %d succeeded", batch+1, total, succeeded),
			TestedSources: end,
			TotalSources:  n,
		})
	}

	return results
}
