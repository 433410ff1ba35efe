package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("rate", "1200")
	c.Set("other", "x")
	v, ok := c.Get("rate")
	assert.True(t, ok)
	assert.Equal(t, "1200", v)

	clock.t = clock.t.Add(time.Minute)
	_, ok = c.Get("rate")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestManager_CleanAll(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register("test", c)
	assert.Zero(t, m.CleanAll())

	clock.t = clock.t.Add(2 * time.Second)
	assert.Equal(t, 2, m.CleanAll())
	m.Stop()
	m.Stop()
}
