package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]().(*ttlCache[string, int])
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "shop|42", Key(" Shop ", "", "42"))
}

type failingStore struct {
	sets    int
	deletes int
}

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}

func (f *failingStore) Set(context.Context, string, string) error {
	f.sets++
	return errors.New("down")
}

func (f *failingStore) Delete(context.Context, string) error {
	f.deletes++
	return errors.New("down")
}

func TestTieredStoreKeepsLocalCopyWhenSharedFails(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryStore[string](time.Minute)
	shared := &failingStore{}
	store := NewTieredStore[string](local, shared)

	err := store.Set(ctx, "k", "v")
	assert.Error(t, err)
	assert.Equal(t, 1, shared.sets)

	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_ = store.Delete(ctx, "k")
	_, ok, err = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, 1, shared.deletes)
}

func TestTieredStoreWithoutSharedIsLocal(t *testing.T) {
	local := NewMemoryStore[string](time.Minute)
	assert.Equal(t, local, NewTieredStore[string](local, nil))
}
