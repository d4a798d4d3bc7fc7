package source

import (
	"fmt"
	"strings"
)

// Result is one provider's entry for a title. It is never mutated after it is fetched.
type Result struct {
	Source     string   `json:"source"`
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	Poster     string   `json:"poster"`
	TypeName   string   `json:"type_name"`
	Episodes   []string `json:"episodes"`
	SourceName string   `json:"source_name"`
}

// Key returns the composite persistence key of the result.
func (r *Result) Key() string {
	return Key(r.Source, r.ID)
}

// Ref returns the identity of the result without its payload.
func (r *Result) Ref() Ref {
	return Ref{Source: r.Source, ID: r.ID}
}

// IsMovie reports whether the result holds a single stream.
func (r *Result) IsMovie() bool {
	return len(r.Episodes) == 1
}

// Episode returns the stream URL at index, or false when it is out of range.
func (r *Result) Episode(index int) (string, bool) {
	if index < 0 || index >= len(r.Episodes) {
		return "", false
	}
	return r.Episodes[index], true
}

func (r *Result) String() string {
	return fmt.Sprintf("%s (%s)", r.Title, r.SourceName)
}

// Ref identifies a result by provider and provider-local id.
type Ref struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Key returns the composite persistence key of the ref.
func (r Ref) Key() string {
	return Key(r.Source, r.ID)
}

// Matches reports whether the result carries this identity.
func (r Ref) Matches(result *Result) bool {
	return result != nil && result.Source == r.Source && result.ID == r.ID
}

// Key joins a provider and id into the key used by every persistence store.
func Key(source, id string) string {
	return source + "+" + id
}

// ParseKey splits a persistence key back into its ref.
// The provider name never contains "+", the id may.
func ParseKey(key string) (Ref, bool) {
	src, id, ok := strings.Cut(key, "+")
	if !ok || src == "" || id == "" {
		return Ref{}, false
	}
	return Ref{Source: src, ID: id}, true
}

// Find returns the result with the given identity.
func Find(results []*Result, ref Ref) (*Result, bool) {
	for _, r := range results {
		if ref.Matches(r) {
			return r, true
		}
	}
	return nil, false
}
