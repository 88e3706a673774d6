package sourceload

import "strings"

// The Source Loader never fetches WASM bytes itself; it hands the Sandbox
// Router a sentinel string identifying where the binary actually lives. The
// three prefixes below are the complete sentinel protocol.
const (
	prefixAssets = "__WASM_ASSETS__:"
	prefixKV     = "__WASM_KV__:"
	prefixInline = "__WASM_INLINE__:"
)

func sentinelAssets(id, version string) string {
	return prefixAssets + id + ":" + version
}

func sentinelKV(id, version string) string {
	return prefixKV + id + ":" + version
}

func sentinelInline(b64 string) string {
	return prefixInline + b64
}

// Sentinel is the decoded form of a WASM sentinel string.
type Sentinel struct {
	Kind       string // "assets", "kv", or "inline"
	FunctionID string
	Version    string
	Base64     string
}

// ParseSentinel recognizes a sentinel produced by Load and decodes it. ok is
// false when s is plain source text rather than a sentinel.
func ParseSentinel(s string) (sentinel Sentinel, ok bool) {
	switch {
	case strings.HasPrefix(s, prefixAssets):
		id, version := splitIDVersion(strings.TrimPrefix(s, prefixAssets))
		return Sentinel{Kind: "assets", FunctionID: id, Version: version}, true
	case strings.HasPrefix(s, prefixKV):
		id, version := splitIDVersion(strings.TrimPrefix(s, prefixKV))
		return Sentinel{Kind: "kv", FunctionID: id, Version: version}, true
	case strings.HasPrefix(s, prefixInline):
		return Sentinel{Kind: "inline", Base64: strings.TrimPrefix(s, prefixInline)}, true
	default:
		return Sentinel{}, false
	}
}

func splitIDVersion(rest string) (id, version string) {
	id, version, _ = strings.Cut(rest, ":")
	return id, version
}
