package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestViewCache_PutGet verifies basic storage and per-view key separation.
func TestViewCache_PutGet(t *testing.T) {
	c := NewViewCache(time.Minute)
	userID := primitive.NewObjectID()

	_, ok := c.Get(ViewRecords, userID)
	assert.False(t, ok)

	c.Put(ViewRecords, userID, "records-payload")
	c.Put(ViewProgress, userID, "progress-payload")

	got, ok := c.Get(ViewRecords, userID)
	require.True(t, ok)
	assert.Equal(t, "records-payload", got)

	got, ok = c.Get(ViewProgress, userID)
	require.True(t, ok)
	assert.Equal(t, "progress-payload", got)

	_, ok = c.Get(ViewSessions, userID)
	assert.False(t, ok, "views must not bleed into each other")
}

// TestViewCache_InvalidateUser purges all of one user's views and nothing else.
func TestViewCache_InvalidateUser(t *testing.T) {
	c := NewViewCache(time.Minute)
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	c.Put(ViewSessions, alice, 1)
	c.Put(ViewRecords, alice, 2)
	c.Put(ViewProgress, alice, 3)
	c.Put(ViewRecords, bob, 4)

	c.InvalidateUser(alice)

	for _, view := range []string{ViewSessions, ViewRecords, ViewProgress} {
		_, ok := c.Get(view, alice)
		assert.False(t, ok, "view %q should be purged", view)
	}

	got, ok := c.Get(ViewRecords, bob)
	require.True(t, ok)
	assert.Equal(t, 4, got)
}

// TestNewViewCache_DefaultTTL falls back to a sane TTL for non-positive input.
func TestNewViewCache_DefaultTTL(t *testing.T) {
	c := NewViewCache(0)
	userID := primitive.NewObjectID()
	c.Put(ViewSessions, userID, "x")
	_, ok := c.Get(ViewSessions, userID)
	assert.True(t, ok)
}
