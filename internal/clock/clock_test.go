package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_NowWithoutOverride(t *testing.T) {
	c := NewReal()
	before := time.Now().UTC()
	got := c.Now()
	after := time.Now().UTC()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
	assert.Equal(t, time.UTC, got.Location())
}

func TestReal_SetOverride(t *testing.T) {
	c := NewReal()
	fixed := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c.SetOverride(&fixed)

	assert.Equal(t, fixed, c.Now())
	assert.Equal(t, fixed, c.Now())

	c.SetOverride(nil)
	assert.NotEqual(t, fixed, c.Now())
}

func TestFrozen_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := NewFrozen(start)

	assert.Equal(t, start, c.Now())

	c.Advance(30 * time.Minute)
	assert.Equal(t, start.Add(30*time.Minute), c.Now())

	other := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(other)
	assert.Equal(t, other, c.Now())
}
