package rotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound signals that no state has been persisted yet.
	ErrNotFound = errors.New("rotation state not found")
	// ErrStateConflict signals a lost compare-and-swap: another writer
	// persisted a newer version since our last load.
	ErrStateConflict = errors.New("rotation state version conflict")
)

// Backend is the durable storage under the rotation store. Save receives the
// version the writer loaded; backends that support it must reject the write
// when the stored version no longer matches.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte, loadedVersion int64) error
}

// FileBackend persists the state as a JSON file. Single-writer by design;
// the loadedVersion argument is ignored.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

func (b *FileBackend) Save(_ context.Context, data []byte, _ int64) error {
	// Write-then-rename so a crash mid-write never leaves a torn file.
	tmp := b.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(b.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, b.Path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// RedisBackend persists the state as a JSON value under a single key, with a
// Lua compare-and-swap on the embedded version field. This closes the
// "last writer wins" gap when more than one scheduler instance runs.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// casScript sets the key only when the stored record's version still equals
// the version the writer loaded (or the key does not exist yet).
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, decoded = pcall(cjson.decode, cur)
  if ok and decoded['version'] ~= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state key %s: %w", b.key, err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, data []byte, loadedVersion int64) error {
	res, err := casScript.Run(ctx, b.client, []string{b.key}, data, loadedVersion).Int()
	if err != nil {
		return fmt.Errorf("write state key %s: %w", b.key, err)
	}
	if res == 0 {
		return ErrStateConflict
	}
	return nil
}
