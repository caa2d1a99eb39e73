// Package prefs holds the user's allowlist of query parameters: parameter
// names kept on every domain regardless of the rule table.
//
// The allowlist is persisted by Store, cached in memory by Cache, and kept in
// step with writes from other processes by Watcher. A cached Allowlist is
// never modified; updates swap in a new value.
package prefs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/colebrumley/nope/internal/rules"
)

// Allowlist is an immutable set of parameter names. The nil *Allowlist is
// empty.
type Allowlist struct {
	keys rules.Set
}

// NewAllowlist returns an allowlist holding keys.
func NewAllowlist(keys ...string) *Allowlist {
	return &Allowlist{keys: rules.NewSet(keys...)}
}

// Has reports whether key is allowed.
func (a *Allowlist) Has(key string) bool {
	if a == nil {
		return false
	}
	return a.keys.Has(key)
}

// Keys returns the allowed names, sorted.
func (a *Allowlist) Keys() []string {
	if a == nil {
		return []string{}
	}
	return a.keys.Keys()
}

// Len returns the number of allowed names.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Cache holds the most recently loaded allowlist for concurrent readers.
type Cache struct {
	current atomic.Pointer[Allowlist]
}

// NewCache returns a cache seeded with initial. A nil initial is stored as an
// empty allowlist.
func NewCache(initial *Allowlist) *Cache {
	c := &Cache{}
	c.Replace(initial)
	return c
}

// Current returns the cached allowlist. It never returns nil.
func (c *Cache) Current() *Allowlist {
	return c.current.Load()
}

// Replace atomically swaps in a.
func (c *Cache) Replace(a *Allowlist) {
	if a == nil {
		a = NewAllowlist()
	}
	c.current.Store(a)
}

// LoadCache loads the allowlist from store and subscribes the cache to the
// store's change notifications. If the store cannot be read, the cache starts
// empty and user overrides are not applied until the next successful reload.
func LoadCache(ctx context.Context, store *Store, logger *slog.Logger) (*Cache, func()) {
	initial, err := store.Load(ctx)
	if err != nil {
		logger.Warn("preference store unavailable, user allowlist not applied", "error", err)
		initial = NewAllowlist()
	}

	cache := NewCache(initial)
	unsubscribe := store.Subscribe(cache.Replace)
	return cache, unsubscribe
}
