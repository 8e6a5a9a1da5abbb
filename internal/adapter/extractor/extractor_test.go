package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("unexpected status code: 404")
	}
	return io.NopCloser(strings.NewReader(page)), nil
}

func newTestExtractor(pages map[string]string) (*ContentExtractor, *fakeFetcher) {
	fetcher := &fakeFetcher{pages: pages}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewContentExtractor(logger, fetcher, nil), fetcher
}

func TestExtract_SiteRules(t *testing.T) {
	pages := map[string]string{
		"https://vietstock.vn/2024/05/a.htm": `<html><body>
			<nav>Menu</nav>
			<div id="vst-content">
				<p>First para.</p>
				<p>Second    para.</p>
				<script>var x = 1;</script>
			</div>
			<p>outside</p>
		</body></html>`,
		"https://cafef.vn/b.chn": `<html><body><div id="mainContent"><p>Cafef body</p></div></body></html>`,
		"https://vnexpress.net/c.html": `<article class="fck_detail"><p>VnExpress body</p><aside>related</aside></article>`,
	}
	e, _ := newTestExtractor(pages)

	assert.Equal(t, "First para.\n\nSecond para.", e.Extract(context.Background(), "https://vietstock.vn/2024/05/a.htm"))
	assert.Equal(t, "Cafef body", e.Extract(context.Background(), "https://cafef.vn/b.chn"))
	assert.Equal(t, "VnExpress body", e.Extract(context.Background(), "https://vnexpress.net/c.html"))
}

func TestExtract_FallbackToArticle(t *testing.T) {
	pages := map[string]string{
		"https://vietstock.vn/no-container.htm": `<body><article><h1>Title</h1><p>Body line<br>next line</p></article></body>`,
	}
	e, _ := newTestExtractor(pages)

	assert.Equal(t, "Title\n\nBody line\nnext line", e.Extract(context.Background(), "https://vietstock.vn/no-container.htm"))
}

func TestExtract_FallbackToParagraphs(t *testing.T) {
	pages := map[string]string{
		"https://example.com/post": `<body><header><p>Site header</p></header>
			<div><p>One</p><span>ignored</span><p>Two <b>bold</b></p></div>
			<footer><p>Copyright</p></footer></body>`,
	}
	e, _ := newTestExtractor(pages)

	assert.Equal(t, "One\n\nTwo bold", e.Extract(context.Background(), "https://example.com/post"))
}

func TestExtract_NoContent(t *testing.T) {
	pages := map[string]string{
		"https://example.com/empty": `<body><div>just a div</div></body>`,
	}
	e, _ := newTestExtractor(pages)

	assert.Equal(t, "", e.Extract(context.Background(), "https://example.com/empty"))

	_, err := e.ExtractFromHTML("https://example.com/empty", strings.NewReader(pages["https://example.com/empty"]))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestExtract_FetchFailure(t *testing.T) {
	e, fetcher := newTestExtractor(map[string]string{})

	assert.Equal(t, "", e.Extract(context.Background(), "https://example.com/missing"))
	assert.Equal(t, 1, fetcher.calls)
}

func TestExtract_SkipsPlaceholderLink(t *testing.T) {
	e, fetcher := newTestExtractor(map[string]string{})

	assert.Equal(t, "", e.Extract(context.Background(), "N/A"))
	assert.Equal(t, 0, fetcher.calls)
}

func TestExtract_Idempotent(t *testing.T) {
	pages := map[string]string{
		"https://example.com/a": `<article><p>Stable   text.</p><p>More.</p></article>`,
	}
	e, _ := newTestExtractor(pages)

	first := e.Extract(context.Background(), "https://example.com/a")
	second := e.Extract(context.Background(), "https://example.com/a")
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestSetRules_CustomRuleTakesPriority(t *testing.T) {
	pages := map[string]string{
		"https://news.example.org/x": `<body><div class="story">Custom body</div><article><p>Generic</p></article></body>`,
	}
	e, _ := newTestExtractor(pages)
	e.SetRules(append([]Rule{{Host: "example.org", Selectors: []string{"div.story"}}}, DefaultRules()...))

	assert.Equal(t, "Custom body", e.Extract(context.Background(), "https://news.example.org/x"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b\n\nc", collapseWhitespace("  a   b \n\n\n\n  c  \n"))
	assert.Equal(t, "", collapseWhitespace(" \n \n"))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - host: example.com\n    selectors: [\"div.body\", \"#main\"]\n"), 0o644))

	rules, err := LoadRules(path)

	require.NoError(t, err)
	assert.Equal(t, []Rule{{Host: "example.com", Selectors: []string{"div.body", "#main"}}}, rules)
}

func TestLoadRules_Invalid(t *testing.T) {
	dir := t.TempDir()
	noSelectors := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(noSelectors, []byte("rules:\n  - host: example.com\n"), 0o644))
	noHost := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(noHost, []byte("rules:\n  - selectors: [p]\n"), 0o644))
	broken := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("rules: [\n"), 0o644))

	for _, path := range []string{noSelectors, noHost, broken, filepath.Join(dir, "missing.yaml")} {
		_, err := LoadRules(path)
		assert.Error(t, err, path)
	}
}

func TestWatchRules_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - host: one.example\n    selectors: [div]\n"), 0o644))

	e, _ := newTestExtractor(nil)
	e.debounce = 10 * time.Millisecond
	require.NoError(t, e.ReloadRules(path))
	assert.Equal(t, "one.example", e.Rules()[0].Host)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.WatchRules(ctx, path) }()
	// ждем, пока наблюдатель подпишется на каталог
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - host: two.example\n    selectors: [div]\n"), 0o644))
	assert.Eventually(t, func() bool {
		return e.Rules()[0].Host == "two.example"
	}, 2*time.Second, 10*time.Millisecond)

	// битый файл не затирает рабочие правила
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "two.example", e.Rules()[0].Host)
	assert.Len(t, e.Rules(), 1+len(DefaultRules()))

	cancel()
	assert.NoError(t, <-done)
}
