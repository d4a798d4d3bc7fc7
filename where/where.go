// Package where resolves application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/vidra-cli/vidra/constant"
	"github.com/vidra-cli/vidra/filesystem"
)

// EnvConfigPath overrides the configuration directory.
const EnvConfigPath = "VIDRA_CONFIG_PATH"

func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config returns the configuration directory.
// VIDRA_CONFIG_PATH takes precedence over the platform user config dir.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Vidra))
}

// Cache returns the cache directory.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}
	return ensureDir(filepath.Join(base, constant.Vidra))
}

// Logs returns the directory dated log files are written to.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// Data returns the directory holding persisted playback state.
func Data() string {
	return ensureDir(filepath.Join(Config(), "data"))
}

// History returns the play record store of the file backend.
func History() string {
	return filepath.Join(Data(), "history.json")
}

// SkipConfigs returns the skip-config store of the file backend.
func SkipConfigs() string {
	return filepath.Join(Data(), "skip.json")
}

// Favorites returns the favorites store of the file backend.
func Favorites() string {
	return filepath.Join(Data(), "favorites.json")
}

// Database returns the sqlite database of the sqlite backend.
func Database() string {
	return filepath.Join(Data(), constant.Vidra+".db")
}

// Queries returns the search query suggestion registry.
func Queries() string {
	return filepath.Join(Cache(), "queries.json")
}

// Temp returns the directory holding player IPC sockets.
// Sockets of crashed runs stay until "vidra clear --temp".
func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Vidra))
}
