package inline

import (
	"encoding/json"

	"github.com/vidra-cli/vidra/probe"
	"github.com/vidra-cli/vidra/source"
)

type Candidate struct {
	// Source is the display name of the provider.
	Source string `json:"source"`
	// Result is the provider's entry.
	Result *source.Result `json:"result"`
	// Probe is set when sources were ranked.
	Probe *probe.Result `json:"probe,omitempty"`
	Score float64       `json:"score,omitempty"`
	// Episodes are the stream URLs left after filtering.
	Episodes []string `json:"episodes"`
}

type Output struct {
	Query  string       `json:"query"`
	Year   string       `json:"year,omitempty"`
	Result []*Candidate `json:"result"`
}

func asJson(candidates []*Candidate, query, year string) ([]byte, error) {
	if candidates == nil {
		candidates = []*Candidate{}
	}

	return json.Marshal(&Output{
		Query:  query,
		Year:   year,
		Result: candidates,
	})
}
