package search

import (
	"context"
	"sync"
	"time"

	"github.com/vidra-cli/vidra/progress"
	"github.com/vidra-cli/vidra/source"
)

// Outcome is the result of one debounced search.
type Outcome struct {
	Query   string
	Results []*source.Result
	Err     error
}

// Debouncer turns a stream of query changes into searches.
// A trigger waits out a quiet period, and every newer trigger cancels the
// previous one whether it is still waiting or already in flight. Outcomes
// of superseded searches are never delivered.
type Debouncer struct {
	search  *Search
	delay   time.Duration
	deliver func(Outcome)
	report  progress.Reporter

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewDebouncer returns a debouncer delivering outcomes to deliver.
func NewDebouncer(s *Search, delay time.Duration, report progress.Reporter, deliver func(Outcome)) *Debouncer {
	return &Debouncer{search: s, delay: delay, deliver: deliver, report: report}
}

// Trigger schedules a search for query, superseding any earlier trigger.
func (d *Debouncer) Trigger(ctx context.Context, query string) {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	go func() {
		defer cancel()

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.delay):
		}

		results, err := d.search.Run(ctx, query, func(s progress.State) {
			if d.current(gen) {
				d.report.Report(s)
			}
		})

		if ctx.Err() != nil || !d.current(gen) {
			return
		}
		d.deliver(Outcome{Query: query, Results: results, Err: err})
	}()
}

// Stop cancels any pending or in-flight search.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

func (d *Debouncer) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen
}
