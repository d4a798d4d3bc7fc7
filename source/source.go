// Package source defines the provider-agnostic result model and the collaborator
// interfaces the resolution pipeline consumes.
package source

import "context"

// ByteProgress is called while a response body is read.
// total is -1 when the collaborator does not know the response size.
type ByteProgress func(read, total int64)

// Searcher queries every provider for a text query in a single round-trip.
type Searcher interface {
	Search(ctx context.Context, query string, progress ByteProgress) ([]*Result, error)
}

// Detailer fetches one provider entry directly.
// It fails when the id is stale or removed upstream.
type Detailer interface {
	Detail(ctx context.Context, source, id string, progress ByteProgress) (*Result, error)
}
