// Package history persists play records, skip configs and favorites,
// all keyed by source+"+"+id.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/vidra-cli/vidra/key"
	"github.com/vidra-cli/vidra/where"
)

// ErrUnknownBackend is returned by Open for an unsupported storage.type.
var ErrUnknownBackend = errors.New("unknown storage backend")

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a persistence backend.
type Store interface {
	PlayRecord(ctx context.Context, key string) (PlayRecord, bool, error)
	PlayRecords(ctx context.Context) (map[string]PlayRecord, error)
	SavePlayRecord(ctx context.Context, key string, record PlayRecord) error
	DeletePlayRecord(ctx context.Context, key string) error

	SkipConfig(ctx context.Context, key string) (SkipConfig, bool, error)
	SaveSkipConfig(ctx context.Context, key string, cfg SkipConfig) error
	DeleteSkipConfig(ctx context.Context, key string) error

	IsFavorited(ctx context.Context, key string) (bool, error)
	Favorites(ctx context.Context) (map[string]Favorite, error)
	SaveFavorite(ctx context.Context, key string, fav Favorite) error
	DeleteFavorite(ctx context.Context, key string) error

	// SaveInterval is how often playback progress is flushed to this backend.
	SaveInterval() time.Duration
	Close() error
}

// Open opens the backend named by kind at its default location.
func Open(kind string) (Store, error) {
	switch kind {
	case BackendFile, "":
		return NewFileStore(where.History(), where.SkipConfigs(), where.Favorites()), nil
	case BackendSQLite:
		return OpenSQLite(where.Database())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// Default opens the backend selected by storage.type.
func Default() (Store, error) {
	return Open(viper.GetString(key.StorageType))
}
