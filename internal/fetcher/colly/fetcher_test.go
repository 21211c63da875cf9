package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/JakeFAU/tabelog2kml/internal/fetcher"
)

func TestNewConfiguresCollector(t *testing.T) {
	t.Parallel()

	g := New(Config{UserAgent: "coverage-agent"})
	assert.Equal(t, "coverage-agent", g.baseCollector.UserAgent)
	assert.True(t, g.baseCollector.AllowURLRevisit)
	assert.True(t, g.baseCollector.IgnoreRobotsTxt)
	assert.Equal(t, DefaultTimeout, g.cfg.Timeout)

	clone := g.baseCollector.Clone()
	assert.Equal(t, "coverage-agent", clone.UserAgent)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	var page fetcher.Page
	var fetchErr error

	hooks := &stubHooks{}
	g.configureCollectorHooks(hooks, "https://example.com/a", time.Now(), &page, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html; charset=Shift_JIS"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/b")},
	})
	assert.Equal(t, "https://example.com/a", page.URL)
	assert.Equal(t, "https://example.com/b", page.FinalURL)
	assert.Equal(t, "body", string(page.Body))
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)

	hooks.onError(&colly.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("Service Unavailable"))
	var statusErr *fetcher.StatusError
	require.ErrorAs(t, fetchErr, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)

	hooks.onError(&colly.Response{}, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

func TestDecodedContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", decodedContentType(nil))
	assert.Equal(t, "text/html", decodedContentType(&http.Header{"Content-Type": {"text/html"}}))
	assert.Equal(t, "text/html; charset=utf-8",
		decodedContentType(&http.Header{"Content-Type": {"text/html; Charset=EUC-JP"}}))
}

func TestGetDecodesHeaderCharset(t *testing.T) {
	t.Parallel()

	body, err := japanese.ShiftJIS.NewEncoder().String(`<html><body><th>ジャンル</th></body></html>`)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	page, err := New(Config{Timeout: 5 * time.Second}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "ジャンル")
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
}

func TestPoolDecodesMetaCharset(t *testing.T) {
	t.Parallel()

	body, err := japanese.ShiftJIS.NewEncoder().String(
		`<html><head><meta charset="Shift_JIS"></head><body><h1>居酒屋</h1></body></html>`)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	pool := fetcher.NewPool(New(Config{}), nil, nil, 2, nil)
	pages, err := pool.FetchAll(context.Background(), []string{srv.URL})
	require.NoError(t, err)
	require.Contains(t, pages, srv.URL)
	assert.Equal(t, "居酒屋", pages[srv.URL].Find("h1").Text())
}

func TestGetMapsHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{}).Get(context.Background(), srv.URL)
	var statusErr *fetcher.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, fetcher.IsTransient(err))
}

func TestGetConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: 2 * time.Second}).Get(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, fetcher.IsTransient(err))
}

// countingGetter counts attempts made through the wrapped Getter.
type countingGetter struct {
	fetcher.Getter
	calls atomic.Int32
}

func (c *countingGetter) Get(ctx context.Context, rawURL string) (fetcher.Page, error) {
	c.calls.Add(1)
	return c.Getter.Get(ctx, rawURL)
}

func TestGetUntrustedCertificateFailsFast(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	getter := &countingGetter{Getter: New(Config{Timeout: 2 * time.Second})}
	_, err := getter.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, fetcher.IsTransient(err))

	pool := fetcher.NewPool(getter, fetcher.NewLinearRetryPolicy(10, time.Millisecond, time.Millisecond), nil, 1, nil)
	_, err = pool.FetchAll(context.Background(), []string{srv.URL})
	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Attempts)
	assert.Equal(t, int32(2), getter.calls.Load())
}

func TestGetHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Get(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
