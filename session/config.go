package session

import (
	"time"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
)

// Config is the runtime configuration of a session.
type Config struct {
	// Optimize probes and ranks sources on a fresh search.
	Optimize bool
	AdBlock  bool
	// WriteHistory enables saving play records.
	WriteHistory bool
	// SaveInterval overrides the store's interval when non-zero.
	SaveInterval      time.Duration
	SkipCheckInterval time.Duration
	EpisodeDebounce   time.Duration
	EndedDelay        time.Duration
	DetailTimeout     time.Duration
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Optimize:          true,
		AdBlock:           true,
		WriteHistory:      true,
		SkipCheckInterval: 1500 * time.Millisecond,
		EpisodeDebounce:   100 * time.Millisecond,
		EndedDelay:        time.Second,
		DetailTimeout:     12 * time.Second,
	}
}

// ConfigFromViper reads the session settings from configuration.
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	cfg.Optimize = viper.GetBool(key.PreferEnable)
	cfg.AdBlock = viper.GetBool(key.PlayerAdBlock)
	cfg.WriteHistory = viper.GetBool(key.HistoryWrite)
	cfg.SaveInterval = viper.GetDuration(key.HistorySaveInterval)
	cfg.DetailTimeout = viper.GetDuration(key.DetailTimeout)

	if d := viper.GetDuration(key.PlayerSkipCheckInterval); d > 0 {
		cfg.SkipCheckInterval = d
	}
	return cfg
}
