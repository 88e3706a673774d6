package function

// CodeSource is a marker interface implemented by every concrete source
// variant (inline, kv, url, registry, assets, wasm, inline-wasm). Concrete
// implementations carry exactly the fields relevant to their resolution
// strategy; the Source Loader switches on the concrete type.
type CodeSource interface {
	isCodeSource()
}

type (
	// InlineSource carries literal source text embedded in the definition.
	InlineSource struct {
		Code string
	}

	// KVSource resolves source text from a key-value bucket collaborator.
	KVSource struct {
		Bucket string
		Key    string
	}

	// URLSource resolves source text via an HTTP GET.
	URLSource struct {
		URL string
	}

	// RegistrySource resolves source text from the function registry
	// collaborator by function ID and optional version.
	RegistrySource struct {
		FunctionID string
		Version    string // empty means "latest" / unversioned key
	}

	// AssetsSource resolves a WASM binary from an assets collaborator by
	// function ID and optional version. The Source Loader never fetches
	// the bytes directly; it returns a sentinel for the Sandbox Router.
	AssetsSource struct {
		FunctionID string
		Version    string
	}

	// WasmSource resolves a WASM binary from the KV collaborator by
	// function ID and optional version, via the same sentinel protocol as
	// AssetsSource.
	WasmSource struct {
		FunctionID string
		Version    string
	}

	// InlineWasmSource carries a WASM binary embedded directly in the
	// definition, either as raw bytes or as base64 text.
	InlineWasmSource struct {
		Bytes  []byte
		Base64 string
	}
)

func (InlineSource) isCodeSource()     {}
func (KVSource) isCodeSource()         {}
func (URLSource) isCodeSource()        {}
func (RegistrySource) isCodeSource()   {}
func (AssetsSource) isCodeSource()     {}
func (WasmSource) isCodeSource()       {}
func (InlineWasmSource) isCodeSource() {}
