package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is the resolution class of a stream.
type Quality string

const (
	Quality4K      Quality = "4K"
	Quality2K      Quality = "2K"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	QualitySD      Quality = "SD"
	QualityUnknown Quality = "unknown"
)

// UnknownSpeed is the load speed of a stream that could not be sampled.
const UnknownSpeed = "unknown"

// Result is the outcome of probing one stream.
type Result struct {
	Quality   Quality `json:"quality"`
	LoadSpeed string  `json:"load_speed"`
	// PingTime is the HEAD round-trip to the manifest in milliseconds.
	PingTime int64 `json:"ping_time"`
	HasError bool  `json:"has_error"`

	BytesPerSecond float64 `json:"bytes_per_second,omitempty"`
}

// Failed is the result of a probe that did not complete.
func Failed() Result {
	return Result{
		Quality:   QualityUnknown,
		LoadSpeed: UnknownSpeed,
		HasError:  true,
	}
}

func (r Result) String() string {
	if r.HasError {
		return "unreachable"
	}
	return fmt.Sprintf("%s, %s, %dms", r.Quality, r.LoadSpeed, r.PingTime)
}

// Frame edges of each quality class, widest first.
var classes = []struct {
	width, height int
	quality       Quality
}{
	{3840, 2160, Quality4K},
	{2560, 1440, Quality2K},
	{1920, 1080, Quality1080p},
	{1280, 720, Quality720p},
	{854, 480, Quality480p},
}

// Classify maps a frame size to a quality class.
// Width decides; height is used only when the width is unknown.
func Classify(width, height int) Quality {
	if width <= 0 && height <= 0 {
		return QualityUnknown
	}

	for _, c := range classes {
		if width >= c.width || (width <= 0 && height >= c.height) {
			return c.quality
		}
	}
	return QualitySD
}

// ParseResolution parses an HLS RESOLUTION attribute such as "1920x1080".
func ParseResolution(s string) (width, height int) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0
	}
	width, _ = strconv.Atoi(w)
	height, _ = strconv.Atoi(h)
	return width, height
}

// FormatSpeed renders a throughput as "N.N KB/s" or "N.N MB/s".
func FormatSpeed(bytesPerSecond float64) string {
	kbps := bytesPerSecond / 1024
	if kbps >= 1024 {
		return fmt.Sprintf("%.1f MB/s", kbps/1024)
	}
	return fmt.Sprintf("%.1f KB/s", kbps)
}
