// Package resultcache namespaces the shared cache.Store for generative
// result lookups, keyed by a digest of the rendered
// prompt plus model.
package resultcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/runforge/execengine/cache"
	"github.com/runforge/execengine/execid"
)

const keyPrefix = "genresult:"

// DefaultTTL is the default result-cache retention window.
const DefaultTTL = time.Hour

// Entry is the cached shape of a generative call's output.
type Entry struct {
	Output      any    `json:"output"`
	RawResponse string `json:"rawResponse"`
	StopReason  string `json:"stopReason"`
}

// Cache looks up and stores Entry values keyed by (functionID, model,
// system, user).
type Cache struct {
	store cache.Store
}

// New wraps store for result-cache use.
func New(store cache.Store) *Cache {
	return &Cache{store: store}
}

// Key returns the cache key for a given (functionID, model, system, user)
// tuple (SHA-256 of `{id}:{model}:{system}:{user}`).
func Key(functionID, model, system, user string) string {
	return keyPrefix + execid.HashString(functionID+":"+model+":"+system+":"+user)
}

// Get returns the cached entry for the given key components, if present.
func (c *Cache) Get(ctx context.Context, functionID, model, system, user string) (Entry, bool, error) {
	raw, ok, err := c.store.GetByKey(ctx, Key(functionID, model, system, user))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Put stores entry under its key, with ttl (DefaultTTL if zero).
func (c *Cache) Put(ctx context.Context, functionID, model, system, user string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, Key(functionID, model, system, user), raw, ttl)
}
