package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupShares(t *testing.T) {
	c := MkCache()
	s1 := c.LookupSlot(7)
	s1.Lock()
	s1.Obj = "seven"
	s1.Unlock()

	s2 := c.LookupSlot(7)
	assert.Same(t, s1, s2)
	assert.Equal(t, "seven", s2.Obj)
	assert.Equal(t, uint64(1), c.Len())

	assert.False(t, c.FreeSlot(7))
	assert.Equal(t, uint64(1), c.Len())
	assert.True(t, c.FreeSlot(7))
	assert.Equal(t, uint64(0), c.Len())

	// a fresh lookup starts from an empty slot
	s3 := c.LookupSlot(7)
	assert.Nil(t, s3.Obj)
	assert.True(t, c.FreeSlot(7))
}

func TestFreeUnknownPanics(t *testing.T) {
	c := MkCache()
	assert.Panics(t, func() { c.FreeSlot(3) })
}

func TestDistinctKeys(t *testing.T) {
	c := MkCache()
	s1 := c.LookupSlot(1)
	s2 := c.LookupSlot(2)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, uint64(2), c.Len())
	c.FreeSlot(1)
	c.FreeSlot(2)
	assert.Equal(t, uint64(0), c.Len())
}
