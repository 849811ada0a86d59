// Package store manages the on-disk package cache: one directory per
// name@version entry holding the extracted package and its lockfile, plus
// the in-memory index built from those lockfiles at startup.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/conaticus/click/pkg/semver"
)

// LockfileName is the per-package lockfile written inside an entry's
// package directory.
const LockfileName = "click-lock.json"

// LockEntry is the persisted record for one installed package: whether it
// was installed as the latest version, and the resolved keys of its direct
// dependencies. During a run the dependency list only ever grows.
type LockEntry struct {
	IsLatest     bool     `json:"isLatest"`
	Dependencies []string `json:"dependencies"`
}

type indexEntry struct {
	version  string
	isLatest bool
}

// Store is a handle on the cache directory. The index is built once at
// construction and is read-only afterwards, so concurrent lookups need no
// locking. It is a point-in-time snapshot: packages installed by the
// current run become visible only to the next process.
type Store struct {
	dir   string
	log   *log.Logger
	index map[string]indexEntry
}

// DefaultDir returns the platform cache root plus the click subdirectory,
// e.g. ~/.cache/click/packages on Linux.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "click", "packages"), nil
}

// New opens (creating if needed) the store at dir and scans it, reading
// each entry's lockfile to build the name → {version, isLatest} index.
// Entries with unreadable or corrupt lockfiles are logged and skipped,
// never fatal: the worst case is an unnecessary re-download.
func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	s := &Store{dir: dir, log: logger, index: make(map[string]indexEntry)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan cache directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name, version := semver.SplitKey(e.Name())
		if version == "" {
			continue
		}
		lock, err := s.ReadLock(e.Name())
		if err != nil {
			s.log.Warn("ignoring cache entry with unreadable lockfile",
				"entry", e.Name(), "err", err)
			continue
		}
		if cur, ok := s.index[name]; ok && cur.isLatest && !lock.IsLatest {
			continue
		}
		s.index[name] = indexEntry{version: version, isLatest: lock.IsLatest}
	}

	return s, nil
}

// Dir returns the cache root directory.
func (s *Store) Dir() string { return s.dir }

// EntryDir returns the directory a PackageKey's tarball is extracted into.
func (s *Store) EntryDir(key string) string {
	return filepath.Join(s.dir, key)
}

// PackageDir returns the package/ directory inside an entry, which holds
// the actual module contents.
func (s *Store) PackageDir(key string) string {
	return filepath.Join(s.dir, key, "package")
}

func (s *Store) lockPath(key string) string {
	return filepath.Join(s.PackageDir(key), LockfileName)
}

// Exists reports whether a cached entry satisfies the request, and which
// version it is. The three lookup modes mirror how versions resolve:
// "latest" consults the index's isLatest flag, a literal version checks the
// exact entry (the index holds only one version per name), and an empty
// version falls back to scanning entries against the comparator.
//
// An entry only counts as cached once its lockfile exists and parses. A bare
// directory is either an in-flight extraction from the current run or debris
// from a crashed one, and claiming a hit on it would link a package whose
// dependency record is missing.
func (s *Store) Exists(name, version string, comp *semver.Comparator) (bool, string) {
	if version == semver.Latest {
		if e, ok := s.index[name]; ok && e.isLatest {
			return true, e.version
		}
		return false, ""
	}

	if version != "" {
		if s.complete(semver.Stringify(name, version)) {
			return true, version
		}
		return false, ""
	}

	if comp == nil {
		return false, ""
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false, ""
	}
	prefix := name + "@"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		_, entryVersion := semver.SplitKey(e.Name())
		if comp.Match(semver.ParseLoose(entryVersion)) && s.complete(e.Name()) {
			return true, entryVersion
		}
	}
	return false, ""
}

// complete reports whether key's entry has a readable lockfile.
func (s *Store) complete(key string) bool {
	_, err := s.ReadLock(key)
	return err == nil
}

// ReadLock parses the lockfile stored for key.
func (s *Store) ReadLock(key string) (*LockEntry, error) {
	data, err := os.ReadFile(s.lockPath(key))
	if err != nil {
		return nil, err
	}
	var lock LockEntry
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse lockfile for %s: %w", key, err)
	}
	return &lock, nil
}

// WriteLock serializes lock into key's lockfile, creating the entry's
// package directory if the extraction has not made it yet.
func (s *Store) WriteLock(key string, lock *LockEntry) error {
	if err := os.MkdirAll(s.PackageDir(key), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("serialize lockfile for %s: %w", key, err)
	}
	if err := os.WriteFile(s.lockPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write lockfile for %s: %w", key, err)
	}
	return nil
}

// Link materializes the cached entry for key into modulesDir by symlinking
// its package directory, and likewise every dependency its lockfile
// records. Links that already exist are skipped.
func (s *Store) Link(key, modulesDir string) error {
	lock, err := s.ReadLock(key)
	if err != nil {
		return fmt.Errorf("read lockfile for cached %s: %w", key, err)
	}
	if err := s.linkOne(key, modulesDir); err != nil {
		return err
	}
	for _, dep := range lock.Dependencies {
		if err := s.linkOne(dep, modulesDir); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) linkOne(key, modulesDir string) error {
	name, _ := semver.SplitKey(key)
	target := filepath.Join(modulesDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(s.PackageDir(key), target); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("link %s: %w", key, err)
	}
	return nil
}
