package datasets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) Bundle(ctx context.Context) (*Bundle, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &Bundle{}, nil
}

func TestCache_ServesFreshEntry(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, time.Minute, nil)

	first, err := c.Bundle(context.Background())
	require.NoError(t, err)
	second, err := c.Bundle(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, time.Minute, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Bundle(context.Background())
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = c.Bundle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	now = now.Add(time.Second)
	_, err = c.Bundle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, 0, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Bundle(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	p := &countingProvider{err: errors.New("boom")}
	c := NewCache(p, time.Minute, nil)

	_, err := c.Bundle(context.Background())
	require.Error(t, err)

	p.err = nil
	b, err := c.Bundle(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, time.Hour, nil)

	_, _ = c.Bundle(context.Background())
	c.Invalidate()
	_, _ = c.Bundle(context.Background())

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_ConcurrentRefreshLoadsOnce(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.Bundle(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, b)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}

// gatedProvider blocks its first load until released and stamps each bundle
// with the dataset version current when the load finishes.
type gatedProvider struct {
	calls   atomic.Int32
	version atomic.Int32
	started chan struct{}
	release chan struct{}
	loaded  map[*Bundle]int32
	mu      sync.Mutex
}

func (p *gatedProvider) Bundle(ctx context.Context) (*Bundle, error) {
	v := p.version.Load()
	if p.calls.Add(1) == 1 {
		close(p.started)
		<-p.release
	}
	b := &Bundle{}
	p.mu.Lock()
	p.loaded[b] = v
	p.mu.Unlock()
	return b, nil
}

func (p *gatedProvider) versionOf(b *Bundle) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded[b]
}

func TestCache_InvalidateDuringLoadDiscardsResult(t *testing.T) {
	p := &gatedProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
		loaded:  make(map[*Bundle]int32),
	}
	c := NewCache(p, time.Hour, nil)

	done := make(chan *Bundle)
	go func() {
		b, err := c.Bundle(context.Background())
		assert.NoError(t, err)
		done <- b
	}()

	<-p.started
	p.version.Store(1)
	c.Invalidate()
	close(p.release)

	stale := <-done
	assert.Equal(t, int32(0), p.versionOf(stale))

	fresh, err := c.Bundle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.versionOf(fresh))
	assert.Equal(t, int32(2), p.calls.Load())

	again, err := c.Bundle(context.Background())
	require.NoError(t, err)
	assert.Same(t, fresh, again)
	assert.Equal(t, int32(2), p.calls.Load())
}
