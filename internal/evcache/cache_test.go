// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetMissingKey(t *testing.T) {
	c := New[string](time.Hour, 0)

	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestSetAndGet(t *testing.T) {
	c := New[[]int](time.Hour, 0)

	c.Set("k", []int{1, 2, 3})
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New[string](10*time.Millisecond, 0)

	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestSweepPastThreshold(t *testing.T) {
	c := New[int](10*time.Millisecond, 5)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("old-%d", i), i)
	}
	time.Sleep(20 * time.Millisecond)

	// Expired entries linger until a Set pushes the count past the
	// threshold, then the sweep removes them.
	assert.Equal(t, 5, c.Len())
	c.Set("fresh", 99)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 99, got)
}

func TestKeyIsStableAndDistinct(t *testing.T) {
	a := Key("heart failure", "relevance", "10")
	b := Key("heart failure", "relevance", "10")
	c := Key("heart failure", "date", "10")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	// Part boundaries matter: ("ab","c") must differ from ("a","bc").
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}
