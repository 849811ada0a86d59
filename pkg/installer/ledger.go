package installer

import (
	"strings"
	"sync"

	"github.com/conaticus/click/pkg/semver"
	"github.com/conaticus/click/pkg/store"
)

// Ledger is the per-run record of every resolved package, keyed by the
// canonical name@version string. It doubles as the deduplication set: a key
// is claimed the moment it is first resolved. One Ledger is created per
// install run and shared by reference across every concurrent unit; all
// access goes through a single lock held only for the map operation itself.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*store.LockEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*store.LockEntry)}
}

// Resolve reports whether key was already recorded, atomically inserting a
// fresh entry when it was not. This check-and-insert is the sole
// deduplication boundary: of any number of concurrent callers with the same
// key, exactly one observes false and proceeds to fetch.
func (l *Ledger) Resolve(key string, isLatest bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; ok {
		return true
	}
	l.entries[key] = &store.LockEntry{IsLatest: isLatest, Dependencies: []string{}}
	return false
}

// Append records a parent→child dependency edge. The parent entry normally
// exists already (Resolve runs before any children are visited); it is
// created on demand as a defensive fallback.
func (l *Ledger) Append(parent, child string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[parent]
	if !ok {
		e = &store.LockEntry{
			IsLatest:     strings.HasSuffix(parent, "@"+semver.Latest),
			Dependencies: []string{},
		}
		l.entries[parent] = e
	}
	e.Dependencies = append(e.Dependencies, child)
}

// Len returns the number of recorded packages.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a deep copy of the ledger for lockfile emission. It is
// meant to be taken after the run has drained, but is safe at any point.
func (l *Ledger) Snapshot() map[string]store.LockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]store.LockEntry, len(l.entries))
	for key, e := range l.entries {
		cp := *e
		cp.Dependencies = append([]string(nil), e.Dependencies...)
		out[key] = cp
	}
	return out
}
