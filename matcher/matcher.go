// Package matcher decides which provider results describe the same work.
//
// Matching runs from strict to loose and never comes back empty-handed:
// a strict pass on title, year and episode count, then a title-only pass,
// then the unfiltered candidates.
package matcher

import (
	"strings"

	"github.com/grafana/regexp"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/log"
	"github.com/vidra-cli/vidra/source"
)

// MaxEpisodeDelta is the largest episode count difference the strict pass tolerates.
const MaxEpisodeDelta = 5

// Matcher compares titles after stripping bracketed annotations such as seasons,
// dubs and years.
type Matcher struct {
	brackets *regexp.Regexp
}

// New returns a matcher that strips any text opened by a rune in open and closed
// by a rune in close. Pairing is not enforced, so "(" may be closed by "）".
func New(open, close string) *Matcher {
	m := &Matcher{}
	if open != "" && close != "" {
		m.brackets = regexp.MustCompile("[" + classEscape(open) + "].*?[" + classEscape(close) + "]")
	}
	return m
}

// Default returns a matcher built from the configured bracket classes.
func Default() *Matcher {
	return New(viper.GetString(key.MatcherOpenBrackets), viper.GetString(key.MatcherCloseBrackets))
}

// Normalize trims, collapses whitespace, strips bracketed text and case-folds.
func (m *Matcher) Normalize(title string) string {
	title = collapse(title)
	if m.brackets != nil {
		title = collapse(m.brackets.ReplaceAllString(title, ""))
	}
	return strings.ToLower(title)
}

// MatchSameWork filters candidates down to the ones describing q.
// The result is a new slice and is non-empty whenever candidates is.
// When q has an origin present in candidates, the origin is always kept.
func (m *Matcher) MatchSameWork(q source.Query, candidates []*source.Result) []*source.Result {
	if len(candidates) == 0 {
		return []*source.Result{}
	}

	title := m.Normalize(q.Title)
	sameTitle := func(r *source.Result, _ int) bool {
		return m.Normalize(r.Title) == title
	}

	matched := lo.Filter(candidates, func(r *source.Result, i int) bool {
		if !sameTitle(r, i) {
			return false
		}
		if year, ok := q.Year.Get(); ok && r.Year != year {
			return false
		}
		if hint, ok := q.EpisodeCountHint.Get(); ok && abs(len(r.Episodes)-hint) > MaxEpisodeDelta {
			return false
		}
		return true
	})
	pass := "strict"

	if len(matched) == 0 {
		matched = lo.Filter(candidates, sameTitle)
		pass = "loose"
	}

	if len(matched) == 0 {
		matched = append([]*source.Result{}, candidates...)
		pass = "fallback"
	}

	if origin, ok := q.Origin.Get(); ok {
		if _, kept := source.Find(matched, origin); !kept {
			if r, present := source.Find(candidates, origin); present {
				matched = append([]*source.Result{r}, matched...)
			}
		}
	}

	log.Debugf("matcher: %q kept %d of %d candidates (%s pass)", q.Title, len(matched), len(candidates), pass)
	return matched
}

// MatchWithOrigin matches candidates against origin and guarantees origin is
// part of the result, prepending it when search did not return it at all.
func (m *Matcher) MatchWithOrigin(origin *source.Result, candidates []*source.Result) []*source.Result {
	matched := m.MatchSameWork(source.QueryFrom(origin), candidates)
	if _, ok := source.Find(matched, origin.Ref()); ok {
		return matched
	}
	return append([]*source.Result{origin}, matched...)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func classEscape(runes string) string {
	var b strings.Builder
	for _, r := range runes {
		switch r {
		case '\\', ']', '[', '^', '-':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
