// Package key defines the canonical set of configuration identifiers.
package key

// DefinedFieldsCount is the number of keys registered in config/default.go.
const DefinedFieldsCount = 24

// Provider Aggregator - the upstream API that fans a query out to every source provider.
const (
	ProviderAPIURL         = "provider.api_url"
	ProviderRateLimit      = "provider.rate_limit"
	ProviderReferer        = "provider.referer"
	ProviderTLSFingerprint = "provider.tls_fingerprint"
)

// Search Interaction
const (
	SearchTimeout              = "search.timeout"
	SearchDebounce             = "search.debounce"
	SearchShowQuerySuggestions = "search.show_query_suggestions"
)

// Detail Retrieval
const (
	DetailTimeout = "detail.timeout"
)

// Stream Probing - these keys bound the cost of measuring a single candidate stream.
const (
	ProbeTimeout     = "probe.timeout"
	ProbeSampleBytes = "probe.sample_bytes"
)

// Source Preference
const (
	PreferEnable = "prefer.enable"
)

// Title Matching - bracket characters whose enclosed text is ignored when comparing titles.
const (
	MatcherOpenBrackets  = "matcher.open_brackets"
	MatcherCloseBrackets = "matcher.close_brackets"
)

// Persistence - these keys select the storage backend for play records, skip configs and favorites.
const (
	StorageType         = "storage.type"
	HistorySaveInterval = "history.save_interval"
	HistoryWrite        = "history.write"
)

// Media Playback
const (
	PlayerAdBlock           = "player.adblock"
	PlayerSkipCheckInterval = "player.skip_check_interval"
	PlayerRelayAddr         = "player.relay_addr"
)

// Logging Infrastructure
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment
const (
	CliColored = "cli.colored"
)

// Iconography
const (
	IconsVariant = "icons.variant"
)
