package history

import (
	"context"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/vidra-cli/vidra/filesystem"
)

// FileSaveInterval is the progress flush interval of the file backend.
const FileSaveInterval = 5 * time.Second

// FileStore keeps each collection in its own JSON file.
type FileStore struct {
	mu        sync.Mutex
	records   *gache.Cache[map[string]PlayRecord]
	skips     *gache.Cache[map[string]SkipConfig]
	favorites *gache.Cache[map[string]Favorite]
}

// NewFileStore creates a store over the three given files.
// The files are created on first write.
func NewFileStore(records, skips, favorites string) *FileStore {
	return &FileStore{
		records:   newCache[PlayRecord](records),
		skips:     newCache[SkipConfig](skips),
		favorites: newCache[Favorite](favorites),
	}
}

func newCache[T any](path string) *gache.Cache[map[string]T] {
	return gache.New[map[string]T](&gache.Options{
		Path:       path,
		FileSystem: &filesystem.GacheFs{},
	})
}

func load[T any](c *gache.Cache[map[string]T]) (map[string]T, error) {
	cached, expired, err := c.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]T), nil
	}
	return cached, nil
}

func get[T any](s *FileStore, c *gache.Cache[map[string]T], key string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	all, err := load(c)
	if err != nil {
		return zero, false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

func update[T any](s *FileStore, c *gache.Cache[map[string]T], fn func(map[string]T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := load(c)
	if err != nil {
		return err
	}
	fn(all)
	return c.Set(all)
}

func snapshot[T any](s *FileStore, c *gache.Cache[map[string]T]) (map[string]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load(c)
}

func (s *FileStore) PlayRecord(_ context.Context, key string) (PlayRecord, bool, error) {
	return get(s, s.records, key)
}

func (s *FileStore) PlayRecords(context.Context) (map[string]PlayRecord, error) {
	return snapshot(s, s.records)
}

func (s *FileStore) SavePlayRecord(_ context.Context, key string, record PlayRecord) error {
	return update(s, s.records, func(m map[string]PlayRecord) { m[key] = record })
}

func (s *FileStore) DeletePlayRecord(_ context.Context, key string) error {
	return update(s, s.records, func(m map[string]PlayRecord) { delete(m, key) })
}

func (s *FileStore) SkipConfig(_ context.Context, key string) (SkipConfig, bool, error) {
	return get(s, s.skips, key)
}

func (s *FileStore) SaveSkipConfig(_ context.Context, key string, cfg SkipConfig) error {
	return update(s, s.skips, func(m map[string]SkipConfig) { m[key] = cfg })
}

func (s *FileStore) DeleteSkipConfig(_ context.Context, key string) error {
	return update(s, s.skips, func(m map[string]SkipConfig) { delete(m, key) })
}

func (s *FileStore) IsFavorited(_ context.Context, key string) (bool, error) {
	_, ok, err := get(s, s.favorites, key)
	return ok, err
}

func (s *FileStore) Favorites(context.Context) (map[string]Favorite, error) {
	return snapshot(s, s.favorites)
}

func (s *FileStore) SaveFavorite(_ context.Context, key string, fav Favorite) error {
	return update(s, s.favorites, func(m map[string]Favorite) { m[key] = fav })
}

func (s *FileStore) DeleteFavorite(_ context.Context, key string) error {
	return update(s, s.favorites, func(m map[string]Favorite) { delete(m, key) })
}

func (s *FileStore) SaveInterval() time.Duration { return FileSaveInterval }

func (s *FileStore) Close() error { return nil }
