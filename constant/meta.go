// Package constant defines immutable application-level identifiers.
package constant

const (
	// Vidra is the application identifier used for filesystem paths, env prefixes and CLI branding.
	Vidra = "vidra"

	// Version is the current application semantic version string.
	Version = "0.3.0"

	// UserAgent is sent with every request to providers and stream hosts.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Build metadata, overridden with -ldflags at release time.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)

// Logo is the banner printed above the root command help.
const Logo = `        _     _
 __   _(_) __| |_ __ __ _
 \ \ / / |/ _` + "`" + ` | '__/ _` + "`" + ` |
  \ V /| | (_| | | | (_| |
   \_/ |_|\__,_|_|  \__,_|`
