package recipes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHTTPFetcher_Save_WritesBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("key: value\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "a", "b", "c.yaml")
	f := NewHTTPFetcher(WithHTTPClient(srv.Client()))
	require.NoError(t, f.Save(context.Background(), srv.URL+"/c.yaml", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "key: value\n", string(data))
	assertNoTempFiles(t, filepath.Dir(dest))
}

func TestHTTPFetcher_Save_StatusErrorWritesNothing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.yaml")
	f := NewHTTPFetcher(WithHTTPClient(srv.Client()))
	err := f.Save(context.Background(), srv.URL+"/missing.yaml", dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "404")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "expected no file, got %v", statErr)
}

func TestHTTPFetcher_Save_FailureKeepsPreviousCopy(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "recipe.yaml")
	require.NoError(t, os.WriteFile(dest, []byte("old: true\n"), 0o644))

	f := NewHTTPFetcher(WithHTTPClient(srv.Client()))
	require.Error(t, f.Save(context.Background(), srv.URL+"/recipe.yaml", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old: true\n", string(data))
	assertNoTempFiles(t, dir)
}

func TestHTTPFetcher_Fetch_BodyTooLarge(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(WithHTTPClient(srv.Client()), WithMaxBodySize(16))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestHTTPFetcher_Fetch_BearerAuth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok: 1"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(WithHTTPClient(srv.Client())).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrHTTPStatus)

	data, err := NewHTTPFetcher(WithHTTPClient(srv.Client()), WithAuthToken("secret-token")).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok: 1", string(data))
}

func TestHTTPFetcher_Fetch_CanceledContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPFetcher(WithHTTPClient(srv.Client())).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "leftover temp file %s", e.Name())
	}
}
