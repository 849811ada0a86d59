// Package httputil provides the file-backed response cache and retry
// policy shared by registry HTTP clients.
package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] when an entry exists but has
// exceeded its TTL. The stale data stays on disk; callers should refetch
// and call [Cache.Set] to refresh it.
var ErrExpired = errors.New("cache entry expired")

// Cache stores JSON-marshalable values as files, one per key. Filenames are
// SHA-256 hashes of the key, so keys may contain any characters. Entries
// expire based on file modification time; a TTL of 0 means never.
//
// A Cache is not goroutine-safe for the same key, but distinct processes may
// share a directory since writes are whole-file.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache creates a cache rooted at dir, creating it if needed. An empty
// dir selects the platform default (user cache dir + "click/http").
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "click", "http")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

// Get unmarshals the entry for key into v. It returns (false, nil) on a
// miss and (false, ErrExpired) when the entry is stale.
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores v under key, replacing any previous entry and resetting its TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(key), data, 0o644)
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
