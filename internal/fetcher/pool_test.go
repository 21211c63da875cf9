package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockGetter is a mock implementation of the Getter interface.
type MockGetter struct {
	mock.Mock
}

func (m *MockGetter) Get(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1)
}

// MockLimiter is a mock implementation of the Limiter interface.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Wait(ctx context.Context, rawURL string) error {
	args := m.Called(ctx, rawURL)
	return args.Error(0)
}

func htmlPage(rawURL, title string) Page {
	return Page{
		URL:         rawURL,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(fmt.Sprintf("<html><body><h1>%s</h1></body></html>", title)),
	}
}

func recordSleeps(p *Pool) *[]time.Duration {
	var mu sync.Mutex
	sleeps := []time.Duration{}
	p.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return &sleeps
}

// orderedGetter finishes URLs in a fixed order regardless of start order.
type orderedGetter struct {
	mu        sync.Mutex
	order     []string
	gates     map[string]chan struct{}
	completed []string
}

func newOrderedGetter(order ...string) *orderedGetter {
	g := &orderedGetter{order: order, gates: map[string]chan struct{}{}}
	for _, u := range order {
		g.gates[u] = make(chan struct{})
	}
	close(g.gates[order[0]])
	return g
}

func (g *orderedGetter) Get(ctx context.Context, rawURL string) (Page, error) {
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case <-g.gates[rawURL]:
	}
	g.mu.Lock()
	g.completed = append(g.completed, rawURL)
	if next := len(g.completed); next < len(g.order) {
		close(g.gates[g.order[next]])
	}
	g.mu.Unlock()
	return htmlPage(rawURL, rawURL), nil
}

func TestFetchAllJoinsByURL(t *testing.T) {
	t.Parallel()

	getter := newOrderedGetter("C", "A", "B")
	pool := NewPool(getter, NewLinearRetryPolicy(3, time.Millisecond, time.Millisecond), nil, 3, nil)

	pages, err := pool.FetchAll(context.Background(), []string{"A", "B", "C", "A"})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"C", "A", "B"}, getter.completed)
	for _, u := range []string{"A", "B", "C"} {
		assert.Equal(t, u, pages[u].Find("h1").Text())
	}
}

func TestFetchAllLogsPageDetails(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/redirect/"
	page := htmlPage(u, "moved")
	page.FinalURL = "https://tabelog.com/r/final/"
	page.Duration = 250 * time.Millisecond
	getter := &MockGetter{}
	getter.On("Get", mock.Anything, u).Return(page, nil).Once()

	core, logs := observer.New(zap.InfoLevel)
	pool := NewPool(getter, nil, nil, 1, zap.New(core))
	_, err := pool.FetchAll(context.Background(), []string{u})
	require.NoError(t, err)

	entries := logs.FilterMessage("page fetched").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, u, fields["url"])
	assert.Equal(t, "https://tabelog.com/r/final/", fields["final_url"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, 250*time.Millisecond, fields["duration"])
	assert.Equal(t, int64(1), fields["done"])
	assert.Equal(t, int64(1), fields["total"])
	getter.AssertExpectations(t)
}

func TestFetchAllEmpty(t *testing.T) {
	t.Parallel()

	pool := NewPool(&MockGetter{}, nil, nil, 0, nil)
	pages, err := pool.FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, DefaultConcurrency, pool.concurrency)
}

func TestFetchAllRetriesTransient(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/1/"
	getter := &MockGetter{}
	getter.On("Get", mock.Anything, u).Return(Page{}, &StatusError{URL: u, Code: http.StatusServiceUnavailable}).Once()
	getter.On("Get", mock.Anything, u).Return(Page{}, io.ErrUnexpectedEOF).Once()
	getter.On("Get", mock.Anything, u).Return(htmlPage(u, "ok"), nil).Once()
	limiter := &MockLimiter{}
	limiter.On("Wait", mock.Anything, u).Return(nil).Times(3)

	pool := NewPool(getter, NewLinearRetryPolicy(10, 500*time.Millisecond, 20*time.Second), limiter, 2, nil)
	sleeps := recordSleeps(pool)

	pages, err := pool.FetchAll(context.Background(), []string{u})
	require.NoError(t, err)
	assert.Equal(t, "ok", pages[u].Find("h1").Text())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *sleeps)
	getter.AssertExpectations(t)
	limiter.AssertExpectations(t)
}

func TestFetchAllExhaustsAttempts(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/2/"
	getter := &MockGetter{}
	getter.On("Get", mock.Anything, u).Return(Page{}, &StatusError{URL: u, Code: http.StatusTooManyRequests}).Times(3)

	pool := NewPool(getter, NewLinearRetryPolicy(3, time.Millisecond, time.Millisecond), nil, 1, nil)
	recordSleeps(pool)

	_, err := pool.FetchAll(context.Background(), []string{u})
	require.ErrorIs(t, err, ErrFetchFailed)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, u, fetchErr.URL)
	assert.Equal(t, 3, fetchErr.Attempts)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	getter.AssertExpectations(t)
}

func TestFetchAllNonTransientFailsFast(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/404/"
	getter := &MockGetter{}
	getter.On("Get", mock.Anything, u).Return(Page{}, &StatusError{URL: u, Code: http.StatusNotFound}).Once()

	pool := NewPool(getter, NewLinearRetryPolicy(10, time.Millisecond, time.Millisecond), nil, 1, nil)
	sleeps := recordSleeps(pool)

	_, err := pool.FetchAll(context.Background(), []string{u})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Attempts)
	assert.Empty(t, *sleeps)
	getter.AssertExpectations(t)
}

func TestFetchAllStopsOnCancel(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/3/"
	getter := &MockGetter{}
	getter.On("Get", mock.Anything, u).Return(Page{}, io.ErrUnexpectedEOF)

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(getter, NewLinearRetryPolicy(0, time.Millisecond, time.Millisecond), nil, 1, nil)
	pool.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := pool.FetchAll(ctx, []string{u})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrFetchFailed))
}

func TestFetchAllLimiterError(t *testing.T) {
	t.Parallel()

	const u = "https://tabelog.com/r/4/"
	limiter := &MockLimiter{}
	limiter.On("Wait", mock.Anything, u).Return(context.DeadlineExceeded)

	pool := NewPool(&MockGetter{}, nil, limiter, 1, nil)
	_, err := pool.FetchAll(context.Background(), []string{u})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))
	require.NoError(t, sleepCtx(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"b", "a", "c"}, dedupe([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, dedupe(nil))
}
