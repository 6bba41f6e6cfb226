package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/app"
	"github.com/JakeFAU/feed-aggregator/internal/config"
	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

type stubFetcher struct{ body string }

func (s stubFetcher) Fetch(_ context.Context, req feed.FetchRequest) (feed.FetchResponse, error) {
	if s.body == "" {
		return feed.FetchResponse{}, errors.New("unreachable")
	}
	return feed.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(s.body)}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Not parallel: swaps the package-level app factory.
func TestRenderCommandWritesStdout(t *testing.T) {
	dir := t.TempDir()
	published := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	rss := fmt.Sprintf(`<rss version="2.0"><channel><title>Ops</title><item><title>Deploy notes</title>`+
		`<link>https://ops.example/deploy</link><pubDate>%s</pubDate></item></channel></rss>`, published)

	sourcesPath := writeFile(t, dir, "feeds.toml", "[feeds.ops]\nurl = \"https://ops.example/rss\"\n")
	configPath := writeFile(t, dir, "config.yaml", "feed:\n  title: CLI Feed\nlogging:\n  development: false\n")

	original := newApp
	t.Cleanup(func() { newApp = original })
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.New(ctx, cfg, zap.NewNop(), app.Deps{Fetcher: stubFetcher{body: rss}})
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"render", "--config", configPath, "--env-file", "", "--sources", sourcesPath, "--out", "-"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "<title>CLI Feed</title>")
	assert.Contains(t, out.String(), "<title>Deploy notes</title>")
	assert.Contains(t, out.String(), "<author><name>Ops</name></author>")
}

func TestRenderCommandFailsWithoutSources(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"render", "--env-file", ""})
	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrNoSources)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yaml", "feed:\n  days: -1\n")
	root := newRootCmd()
	root.SetArgs([]string{"render", "--config", configPath, "--env-file", ""})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.days")
}

// Not parallel: mutates process environment.
func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	const key = "FEEDAGG_TEST_DOTENV_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	path := writeFile(t, t.TempDir(), ".env", key+"=from-dotenv\n")
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	t.Setenv(key, "from-env")
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv(key))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, listener, handler, time.Second, zap.NewNop()) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + listener.Addr().String() + "/")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
