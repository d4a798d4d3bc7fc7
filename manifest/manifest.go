// Package manifest rewrites HLS playlists and fetches them for probing and playback.
package manifest

import (
	"net/url"
	"strings"
)

// Transform rewrites the text of a playlist.
type Transform func(string) string

// Identity returns the playlist unchanged.
func Identity(s string) string { return s }

const discontinuityTag = "#EXT-X-DISCONTINUITY"

// FilterDiscontinuity drops every line containing the discontinuity tag.
// Inserted ads are delimited by these tags, so the player plays through them without a break.
// Other lines and their order are preserved.
func FilterDiscontinuity(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, discontinuityTag) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ForConfig returns the transform applied to every playlist the player loads.
func ForConfig(adblock bool) Transform {
	if adblock {
		return FilterDiscontinuity
	}
	return Identity
}

// Chain applies transforms left to right.
func Chain(ts ...Transform) Transform {
	return func(s string) string {
		for _, t := range ts {
			if t != nil {
				s = t(s)
			}
		}
		return s
	}
}

// Resolve resolves a playlist reference against the playlist's own URL.
// Absolute references are returned as is.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsMaster reports whether the playlist text declares variant streams.
func IsMaster(s string) bool {
	return strings.Contains(s, "#EXT-X-STREAM-INF")
}
