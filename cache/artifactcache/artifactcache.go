// Package artifactcache namespaces the shared cache.Store for compiled-
// artifact lookups, keyed by a content digest of (language,
// source).
package artifactcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/runforge/execengine/cache"
	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/execid"
)

const keyPrefix = "artifact:"

// DefaultTTL is how long a compiled artifact stays cached absent an
// explicit override.
const DefaultTTL = 24 * time.Hour

// Cache looks up and stores compile.Artifact values keyed by source digest.
type Cache struct {
	store cache.Store
}

// New wraps store for artifact-cache use.
func New(store cache.Store) *Cache {
	return &Cache{store: store}
}

// Key returns the cache key for a given language+source pair, using the same
// content-addressing scheme as the result cache (one hashing
// algorithm for all content-addressed caches).
func Key(language, source string) string {
	return keyPrefix + language + ":" + execid.HashString(language+"\x00"+source)
}

type wireArtifact struct {
	Kind string            `json:"kind"`
	Code string            `json:"code"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Get returns the cached artifact for (language, source), if present.
func (c *Cache) Get(ctx context.Context, language, source string) (compile.Artifact, bool, error) {
	raw, ok, err := c.store.GetByKey(ctx, Key(language, source))
	if err != nil || !ok {
		return compile.Artifact{}, false, err
	}
	var w wireArtifact
	if err := json.Unmarshal(raw, &w); err != nil {
		return compile.Artifact{}, false, nil
	}
	return compile.Artifact{Kind: compile.Kind(w.Kind), Code: w.Code, Meta: w.Meta}, true, nil
}

// Put stores a compiled artifact under its content-addressed key.
func (c *Cache) Put(ctx context.Context, language, source string, artifact compile.Artifact) error {
	raw, err := json.Marshal(wireArtifact{Kind: string(artifact.Kind), Code: artifact.Code, Meta: artifact.Meta})
	if err != nil {
		return err
	}
	return c.store.Put(ctx, Key(language, source), raw, DefaultTTL)
}
