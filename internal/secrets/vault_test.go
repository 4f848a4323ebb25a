package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := newTTLCache(time.Minute)
	c.now = func() time.Time { return now }

	c.put("db-password", "s3cret")
	v, ok := c.get("db-password")
	assert.True(t, ok)
	assert.Equal(t, "s3cret", v)

	now = now.Add(time.Minute)
	_, ok = c.get("db-password")
	assert.False(t, ok, "entry expires at its ttl")

	var disabled *ttlCache
	disabled.put("x", "y")
	_, ok = disabled.get("x")
	assert.False(t, ok)
}
