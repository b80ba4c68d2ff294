package vision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/store"
)

type countingDescriber struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingDescriber(err error) *countingDescriber {
	return &countingDescriber{calls: make(map[string]int), err: err}
}

func (d *countingDescriber) Describe(_ context.Context, url string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[url]++
	if d.err != nil {
		return "", d.err
	}
	return "a picture of " + url, nil
}

func (d *countingDescriber) callCount(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[url]
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDescribe_CachesByURL(t *testing.T) {
	st := newTestStore(t)
	d := newCountingDescriber(nil)
	c := New(st, d, 5, time.Hour, zap.NewNop())

	first := c.Describe(context.Background(), []string{"http://img/1"})
	require.Equal(t, []string{"a picture of http://img/1"}, first)

	second := c.Describe(context.Background(), []string{"http://img/1"})
	require.Equal(t, first, second)

	assert.Equal(t, 1, d.callCount("http://img/1"))
}

func TestDescribe_DuplicateURLsInOneBatch(t *testing.T) {
	st := newTestStore(t)
	d := newCountingDescriber(nil)
	c := New(st, d, 5, time.Hour, zap.NewNop())

	urls := []string{"http://img/x", "http://img/x", "http://img/x", "http://img/x"}
	descs := c.Describe(context.Background(), urls)

	require.Len(t, descs, 4)
	for _, desc := range descs {
		assert.Equal(t, "a picture of http://img/x", desc)
	}
	assert.Equal(t, 1, d.callCount("http://img/x"))
}

func TestDescribe_FailureYieldsFallbackPerURL(t *testing.T) {
	st := newTestStore(t)
	d := newCountingDescriber(errors.New("vision down"))
	c := New(st, d, 5, time.Hour, zap.NewNop())

	descs := c.Describe(context.Background(), []string{"http://img/a", "http://img/b"})

	require.Equal(t, []string{FallbackDescription, FallbackDescription}, descs)
}

func TestDescribe_CachedFallbackHonoredWithinTTL(t *testing.T) {
	st := newTestStore(t)
	d := newCountingDescriber(errors.New("vision down"))
	c := New(st, d, 5, time.Hour, zap.NewNop())

	c.Describe(context.Background(), []string{"http://img/a"})
	c.Describe(context.Background(), []string{"http://img/a"})

	// The cached fallback is still fresh, so no retry happened.
	assert.Equal(t, 1, d.callCount("http://img/a"))
}

func TestDescribe_ExpiredFallbackRetried(t *testing.T) {
	st := newTestStore(t)
	d := newCountingDescriber(errors.New("vision down"))
	// TTL of zero means cached fallbacks are always retried.
	c := New(st, d, 5, 0, zap.NewNop())

	c.Describe(context.Background(), []string{"http://img/a"})
	d.err = nil
	descs := c.Describe(context.Background(), []string{"http://img/a"})

	assert.Equal(t, []string{"a picture of http://img/a"}, descs)
	assert.Equal(t, 2, d.callCount("http://img/a"))
}

// gatingDescriber tracks how many calls are in flight at once, blocking each
// call briefly so overlap actually occurs.
type gatingDescriber struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *gatingDescriber) Describe(_ context.Context, url string) (string, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	for {
		max := d.maxInFlight.Load()
		if n <= max || d.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	time.Sleep(10 * time.Millisecond)
	return "a picture of " + url, nil
}

func TestDescribe_BoundsConcurrentCalls(t *testing.T) {
	st := newTestStore(t)
	d := &gatingDescriber{}
	c := New(st, d, 3, time.Hour, zap.NewNop())

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://img/%d", i)
	}

	descs := c.Describe(context.Background(), urls)

	require.Len(t, descs, 20)
	for i, desc := range descs {
		assert.Equal(t, "a picture of "+urls[i], desc)
	}
	assert.LessOrEqual(t, d.maxInFlight.Load(), int32(3))
	assert.Greater(t, d.maxInFlight.Load(), int32(1), "calls never overlapped")
}

func TestDescribe_EmptyInput(t *testing.T) {
	st := newTestStore(t)
	c := New(st, newCountingDescriber(nil), 5, time.Hour, zap.NewNop())

	assert.Nil(t, c.Describe(context.Background(), nil))
}
