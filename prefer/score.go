package prefer

import (
	"math"
	"strconv"

	"github.com/grafana/regexp"
	"github.com/vidra-cli/vidra/probe"
)

var qualityScores = map[probe.Quality]float64{
	probe.Quality4K:      100,
	probe.Quality2K:      85,
	probe.Quality1080p:   75,
	probe.Quality720p:    60,
	probe.Quality480p:    40,
	probe.QualitySD:      20,
	probe.QualityUnknown: 0,
}

var speedPattern = regexp.MustCompile(`^([\d.]+)\s*(KB/s|MB/s)$`)

// unparsedSpeedScore is given to streams whose speed could not be read.
const unparsedSpeedScore = 30

// Score weighs a probe result into 0-100: quality 40%, speed 40%, ping 20%.
// The result is rounded to two decimals.
func Score(r probe.Result) float64 {
	score := QualityScore(r.Quality)*0.4 + SpeedScore(r.LoadSpeed)*0.4 + PingScore(r.PingTime)*0.2
	return math.Round(score*100) / 100
}

// QualityScore scores a quality class.
func QualityScore(q probe.Quality) float64 {
	return qualityScores[q]
}

// SpeedScore scores a formatted speed. 2 MB/s and above scores 100.
func SpeedScore(speed string) float64 {
	m := speedPattern.FindStringSubmatch(speed)
	if m == nil {
		return unparsedSpeedScore
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return unparsedSpeedScore
	}

	kbps := value
	if m[2] == "MB/s" {
		kbps *= 1024
	}

	return math.Min(100, kbps/2048*100)
}

// PingScore scores a round-trip in milliseconds. 2s and above scores 0.
func PingScore(ms int64) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Max(0, 1-float64(ms)/2000) * 100
}
