// Package cache holds the in-process read-view cache for per-user session,
// record, and progress views. The completion engine never reads or writes it
// inside a transaction; it is purged once after a successful commit.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// View names used as key prefixes.
const (
	ViewSessions = "sessions"
	ViewRecords  = "records"
	ViewProgress = "progress"
)

var viewNames = []string{ViewSessions, ViewRecords, ViewProgress}

// ViewCache caches rendered per-user views with a bounded lifetime.
type ViewCache struct {
	store *gocache.Cache
}

// NewViewCache creates a cache with the given default TTL.
func NewViewCache(ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{
		store: gocache.New(ttl, 2*ttl),
	}
}

func key(view string, userID primitive.ObjectID) string {
	return fmt.Sprintf("%s:%s", view, userID.Hex())
}

// Get returns the cached view value for a user, if present.
func (c *ViewCache) Get(view string, userID primitive.ObjectID) (interface{}, bool) {
	return c.store.Get(key(view, userID))
}

// Put stores a view value for a user under the default TTL.
func (c *ViewCache) Put(view string, userID primitive.ObjectID, value interface{}) {
	c.store.SetDefault(key(view, userID), value)
}

// InvalidateUser purges every cached view for the user. Implements the
// service.CacheInvalidator collaborator; called once per committed completion.
func (c *ViewCache) InvalidateUser(userID primitive.ObjectID) {
	for _, view := range viewNames {
		c.store.Delete(key(view, userID))
	}
}
