package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

const sampleDoc = `
[feeds.zeta]
url = "https://zeta.example/rss"

[feeds.golang]
name = "The Go Blog"
url = " https://go.dev/blog/feed.atom "
tags = ["go", "lang"]

[feeds.placeholder]
name = "Coming soon"
url = ""
`

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, []feed.Source{
		{Key: "golang", Name: "The Go Blog", URL: "https://go.dev/blog/feed.atom", Tags: []string{"go", "lang"}},
		{Key: "placeholder", Name: "Coming soon", URL: ""},
		{Key: "zeta", Name: "zeta", URL: "https://zeta.example/rss"},
	}, got)
}

func TestParseEmptyAndInvalid(t *testing.T) {
	t.Parallel()

	got, err := Parse([]byte("# nothing configured\n"))
	require.NoError(t, err)
	assert.Empty(t, got)

	for name, doc := range map[string]string{
		"syntax":     "[feeds.bad\nurl = ",
		"wrong type": "[feeds.x]\ntags = \"not-a-list\"\n",
	} {
		_, err := Parse([]byte(doc))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrDecode), name)
	}
}

func TestLoaderRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feeds.toml":
			assert.Equal(t, "feedagg-test", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(sampleDoc))
		case "/broken.toml":
			_, _ = w.Write([]byte("[feeds"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	loader := NewLoader(LoaderConfig{Timeout: time.Second, UserAgent: "feedagg-test"}, nil)

	got, err := loader.Load(context.Background(), srv.URL+"/feeds.toml")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "golang", got[0].Key)

	_, err = loader.Load(context.Background(), srv.URL+"/missing.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Contains(t, err.Error(), "404")

	_, err = loader.Load(context.Background(), srv.URL+"/broken.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestLoaderRemoteTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	loader := NewLoader(LoaderConfig{Timeout: 50 * time.Millisecond}, nil)
	_, err := loader.Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
}

func TestLoaderLocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))

	loader := NewLoader(LoaderConfig{}, nil)
	got, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = loader.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = loader.Load(context.Background(), filepath.Join(dir, "nope.toml"))
	assert.True(t, errors.Is(err, ErrFetch))

	_, err = loader.Load(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrFetch))
}
