package sourceload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/function"
)

type memKV struct {
	data map[string][]byte
}

func (m *memKV) Get(_ context.Context, bucket, key string) ([]byte, bool, error) {
	data, ok := m.data[bucket+"/"+key]
	return data, ok, nil
}

type memRegistry struct {
	docs map[string][]byte
}

func (m *memRegistry) GetDocument(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.docs[key]
	return data, ok, nil
}

func TestLoadInline(t *testing.T) {
	out, err := Load(context.Background(), function.InlineSource{Code: "console.log(1)"}, Bindings{})
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", out)
}

func TestLoadKV(t *testing.T) {
	kv := &memKV{data: map[string][]byte{"bucket/key": []byte("source text")}}
	out, err := Load(context.Background(), function.KVSource{Bucket: "bucket", Key: "key"}, Bindings{KV: kv})
	require.NoError(t, err)
	assert.Equal(t, "source text", out)
}

func TestLoadKVNotFound(t *testing.T) {
	kv := &memKV{data: map[string][]byte{}}
	_, err := Load(context.Background(), function.KVSource{Bucket: "b", Key: "missing"}, Bindings{KV: kv})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrSourceNotFound, fe.Name)
}

func TestLoadKVMissingBinding(t *testing.T) {
	_, err := Load(context.Background(), function.KVSource{Bucket: "b", Key: "k"}, Bindings{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrConfiguration, fe.Name)
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fetched source"))
	}))
	defer srv.Close()

	out, err := Load(context.Background(), function.URLSource{URL: srv.URL}, Bindings{})
	require.NoError(t, err)
	assert.Equal(t, "fetched source", out)
}

func TestLoadURLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), function.URLSource{URL: srv.URL}, Bindings{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrSourceUnavailable, fe.Name)
}

func TestLoadRegistry(t *testing.T) {
	reg := &memRegistry{docs: map[string][]byte{
		"fn-1:v2": []byte(`{"code":"versioned source"}`),
		"fn-1":    []byte(`{"code":"latest source"}`),
	}}

	out, err := Load(context.Background(), function.RegistrySource{FunctionID: "fn-1", Version: "v2"}, Bindings{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, "versioned source", out)

	out, err = Load(context.Background(), function.RegistrySource{FunctionID: "fn-1"}, Bindings{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, "latest source", out)
}

func TestLoadRegistryFallsBackToUnversioned(t *testing.T) {
	reg := &memRegistry{docs: map[string][]byte{
		"fn-1": []byte(`{"code":"latest source"}`),
	}}
	out, err := Load(context.Background(), function.RegistrySource{FunctionID: "fn-1", Version: "v9"}, Bindings{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, "latest source", out)
}

func TestLoadWasmSentinels(t *testing.T) {
	out, err := Load(context.Background(), function.AssetsSource{FunctionID: "fn-1", Version: "v1"}, Bindings{})
	require.NoError(t, err)
	s, ok := ParseSentinel(out)
	require.True(t, ok)
	assert.Equal(t, "assets", s.Kind)
	assert.Equal(t, "fn-1", s.FunctionID)
	assert.Equal(t, "v1", s.Version)

	out, err = Load(context.Background(), function.WasmSource{FunctionID: "fn-2"}, Bindings{})
	require.NoError(t, err)
	s, ok = ParseSentinel(out)
	require.True(t, ok)
	assert.Equal(t, "kv", s.Kind)
	assert.Equal(t, "fn-2", s.FunctionID)

	out, err = Load(context.Background(), function.InlineWasmSource{Base64: "AAEC"}, Bindings{})
	require.NoError(t, err)
	s, ok = ParseSentinel(out)
	require.True(t, ok)
	assert.Equal(t, "inline", s.Kind)
	assert.Equal(t, "AAEC", s.Base64)
}

func TestLoadInlineWasmFromBytes(t *testing.T) {
	out, err := Load(context.Background(), function.InlineWasmSource{Bytes: []byte{0x00, 0x61, 0x73, 0x6d}}, Bindings{})
	require.NoError(t, err)
	s, ok := ParseSentinel(out)
	require.True(t, ok)
	assert.Equal(t, "inline", s.Kind)
	assert.NotEmpty(t, s.Base64)
}
