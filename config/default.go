// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/constant"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/style"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Vidra + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON includes the current value next to the default.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		Default[k] = Field{Key: k, Value: v, Description: desc}
		EnvExposed = append(EnvExposed, k)
	}

	register(key.ProviderAPIURL, "http://127.0.0.1:3000", "Base URL of the aggregator API.\nIt must serve /api/search?q= and /api/detail?source=&id=")
	register(key.ProviderRateLimit, 10, "Maximum aggregator requests per second")
	register(key.ProviderReferer, "", "Referer and Origin sent with manifest and segment requests.\nSome stream hosts reject requests without one")
	register(key.ProviderTLSFingerprint, false, "Dial providers and stream hosts with a browser TLS fingerprint")
	register(key.SearchTimeout, "12s", "Timeout of a single search round-trip")
	register(key.SearchDebounce, "100ms", "Quiet period before a changed query triggers a new search")
	register(key.SearchShowQuerySuggestions, true, "Show query suggestions when searching")
	register(key.DetailTimeout, "12s", "Timeout of a single detail fetch")
	register(key.ProbeTimeout, "8s", "Timeout of a single stream probe")
	register(key.ProbeSampleBytes, 512*1024, "Bytes of the first segment downloaded to measure throughput")
	register(key.PreferEnable, true, "Probe every matched source and start with the best one")
	register(key.MatcherOpenBrackets, "[［(（【", "Opening brackets whose enclosed text is ignored when comparing titles")
	register(key.MatcherCloseBrackets, "]］)）】", "Closing brackets whose enclosed text is ignored when comparing titles")
	register(key.StorageType, "file", "Storage backend for play records, skip configs and favorites.\nAvailable options are: file, sqlite")
	register(key.HistorySaveInterval, "0s", "Interval between progress saves during playback.\n0 uses the storage backend default (file 5s, sqlite 10s)")
	register(key.HistoryWrite, true, "Save playback progress")
	register(key.PlayerAdBlock, true, "Remove discontinuity-delimited ad segments from stream manifests")
	register(key.PlayerSkipCheckInterval, "1500ms", "Minimum interval between intro/outro skip checks")
	register(key.PlayerRelayAddr, "127.0.0.1:0", "Listen address of the local manifest relay")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, plain, nerd (nerd-font required)")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"cyan":     style.Fg(color.Cyan),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
