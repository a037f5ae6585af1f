package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Run("SetGet", func(t *testing.T) {
		c := New(10, time.Minute)
		c.Set("a", 1)

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, got)
	})

	t.Run("Miss", func(t *testing.T) {
		c := New(10, time.Minute)
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		c := New(10, time.Millisecond)
		c.Set("a", 1)
		time.Sleep(5 * time.Millisecond)

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Zero(t, c.Len())
	})

	t.Run("Delete", func(t *testing.T) {
		c := New(10, time.Minute)
		c.Set("a", 1)
		c.Delete("a")

		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("BoundedEviction", func(t *testing.T) {
		c := New(2, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("c", 3)

		assert.Equal(t, 2, c.Len())
		// The oldest write was evicted.
		_, ok := c.Get("a")
		assert.False(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
	})

	t.Run("OverwriteDoesNotEvict", func(t *testing.T) {
		c := New(2, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("a", 3)

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 3, got)
		_, ok = c.Get("b")
		assert.True(t, ok)
	})
}
