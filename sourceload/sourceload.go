// Package sourceload resolves a function.CodeSource descriptor to source
// text, or to an internal sentinel for binary (WASM) modalities. It is the
// source loading component.
package sourceload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/runforge/execengine/function"
)

// KVStore is the read-only key→bytes collaborator backing KVSource.
type KVStore interface {
	// Get returns the bytes stored at (bucket, key). ok is false when the
	// key does not exist.
	Get(ctx context.Context, bucket, key string) (data []byte, ok bool, err error)
}

// Registry is the read-only collaborator backing RegistrySource. Keys are
// either "{id}:{version}" or "{id}".
type Registry interface {
	// GetDocument returns the raw JSON document `{code: string}` stored at
	// key. ok is false when the key does not exist.
	GetDocument(ctx context.Context, key string) (data []byte, ok bool, err error)
}

// HTTPGetter performs the HTTP GET used by URLSource. http.DefaultClient
// satisfies this interface.
type HTTPGetter interface {
	Get(url string) (*http.Response, error)
}

// Bindings gathers the optional collaborators the loader needs. A nil KV or
// Registry binding makes the CodeSource variants that use it fail with
// function.ErrConfiguration; a nil HTTP binding falls back to
// http.DefaultClient.
type Bindings struct {
	KV       KVStore
	Registry Registry
	HTTP     HTTPGetter
}

// registryDocument is the JSON shape read from the Registry collaborator.
type registryDocument struct {
	Code string `json:"code"`
}

// Load resolves src to source text, or to one of the internal WASM
// sentinels (see Sentinel kinds below) for binary modalities. The sentinel
// is an internal protocol between the Source Loader and the Sandbox Router;
// callers outside this module must not inspect it.
func Load(ctx context.Context, src function.CodeSource, b Bindings) (string, error) {
	switch s := src.(type) {
	case function.InlineSource:
		return s.Code, nil

	case function.KVSource:
		if b.KV == nil {
			return "", function.New(function.ErrConfiguration, "kv source requires a KV binding")
		}
		data, ok, err := b.KV.Get(ctx, s.Bucket, s.Key)
		if err != nil {
			return "", function.New(function.ErrSourceUnavailable, "kv get failed: %v", err)
		}
		if !ok {
			return "", function.New(function.ErrSourceNotFound, "kv source not found: %s/%s", s.Bucket, s.Key)
		}
		return string(data), nil

	case function.URLSource:
		if b.HTTP == nil {
			b.HTTP = http.DefaultClient
		}
		resp, err := b.HTTP.Get(s.URL)
		if err != nil {
			return "", function.New(function.ErrSourceUnavailable, "url fetch failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", function.New(function.ErrSourceUnavailable, "url fetch returned status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", function.New(function.ErrSourceUnavailable, "url read failed: %v", err)
		}
		return string(data), nil

	case function.RegistrySource:
		if b.Registry == nil {
			return "", function.New(function.ErrConfiguration, "registry source requires a registry binding")
		}
		key := s.FunctionID
		if s.Version != "" {
			key = fmt.Sprintf("%s:%s", s.FunctionID, s.Version)
		}
		data, ok, err := b.Registry.GetDocument(ctx, key)
		if !ok {
			// Fall back to the unversioned key when a versioned lookup misses.
			if s.Version != "" {
				data, ok, err = b.Registry.GetDocument(ctx, s.FunctionID)
			}
		}
		if err != nil {
			return "", function.New(function.ErrSourceUnavailable, "registry get failed: %v", err)
		}
		if !ok {
			return "", function.New(function.ErrSourceNotFound, "registry source not found: %s", s.FunctionID)
		}
		var doc registryDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", function.New(function.ErrSourceUnavailable, "registry document malformed: %v", err)
		}
		return doc.Code, nil

	case function.AssetsSource:
		return sentinelAssets(s.FunctionID, s.Version), nil

	case function.WasmSource:
		return sentinelKV(s.FunctionID, s.Version), nil

	case function.InlineWasmSource:
		if len(s.Bytes) > 0 {
			return sentinelInline(base64.StdEncoding.EncodeToString(s.Bytes)), nil
		}
		return sentinelInline(s.Base64), nil

	default:
		return "", function.New(function.ErrInvalidInput, "unknown code source type %T", src)
	}
}
