package session

import (
	stdimage "image"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	id := s.Create()
	require.NotEmpty(t, id)

	state, ok := s.Get(id)
	require.True(t, ok)
	assert.False(t, state.HasImage())

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 2, 2))
	s.Put(id, State{Image: img, URL: "https://x/a.png", Params: image.Params{APIKey: "sk-secret", Prompt: "cat"}})

	state, ok = s.Get(id)
	require.True(t, ok)
	assert.True(t, state.HasImage())
	assert.Equal(t, "https://x/a.png", state.URL)
	assert.Equal(t, "cat", state.Params.Prompt)
	assert.Empty(t, state.Params.APIKey)

	s.Put(id, State{Error: "provider error"})
	state, _ = s.Get(id)
	assert.False(t, state.HasImage())
	assert.Empty(t, state.URL)
	assert.Equal(t, "provider error", state.Error)

	s.Delete(id)
	_, ok = s.Get(id)
	assert.False(t, ok)
}

func TestStoreSessionsAreIsolated(t *testing.T) {
	s := NewStore()
	a, b := s.Create(), s.Create()
	assert.NotEqual(t, a, b)

	s.Put(a, State{URL: "https://x/a.png"})
	state, _ := s.Get(b)
	assert.Empty(t, state.URL)
}

func TestStoreExpire(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return now }

	stale := s.Create()
	now = now.Add(30 * time.Minute)
	fresh := s.Create()
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, s.Expire(time.Hour))
	_, ok := s.Get(stale)
	assert.False(t, ok)
	_, ok = s.Get(fresh)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Create()
			s.Put(id, State{URL: id})
			state, ok := s.Get(id)
			assert.True(t, ok)
			assert.Equal(t, id, state.URL)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, s.Len())
}
