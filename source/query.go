package source

import "github.com/samber/mo"

// Query is the identity a user is trying to resolve to.
type Query struct {
	Title            string
	Year             mo.Option[string]
	EpisodeCountHint mo.Option[int]

	// Origin is set when the query was derived from a result the user is already on.
	Origin mo.Option[Ref]
}

// QueryFrom derives a query from a known result, typically the one being refreshed.
func QueryFrom(r *Result) Query {
	return Query{
		Title:            r.Title,
		Year:             mo.Some(r.Year),
		EpisodeCountHint: mo.Some(len(r.Episodes)),
		Origin:           mo.Some(r.Ref()),
	}
}

// QueryText derives a query from free search text. An empty year is treated as absent.
func QueryText(title, year string) Query {
	q := Query{Title: title}
	if year != "" {
		q.Year = mo.Some(year)
	}
	return q
}
