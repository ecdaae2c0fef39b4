package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// Cache memoizes event feeds by event id. A cached feed is only replaced
// when the caller asks for it; there is no expiry.
type Cache struct {
	backend backend.Backend
	logger  logging.Logger

	mutex     sync.RWMutex
	feeds     map[int]*backend.EventFeed
	fetchedAt map[int]time.Time
}

func NewCache(b backend.Backend, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Cache{
		backend:   b,
		logger:    logger,
		feeds:     make(map[int]*backend.EventFeed),
		fetchedAt: make(map[int]time.Time),
	}
}

// FetchEventFeed loads the feed for eventID unless it is cached and overwrite
// is false. A fetched feed replaces the cached one wholesale. On failure the
// previous entry is kept.
func (c *Cache) FetchEventFeed(ctx context.Context, eventID int, overwrite bool) error {
	if !overwrite {
		c.mutex.RLock()
		_, cached := c.feeds[eventID]
		c.mutex.RUnlock()
		if cached {
			return nil
		}
	}

	feed, err := c.backend.FetchEventFeed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to fetch feed for event %d: %w", eventID, err)
	}

	c.mutex.Lock()
	c.feeds[eventID] = feed
	c.fetchedAt[eventID] = time.Now()
	c.mutex.Unlock()

	c.logger.Debug("Cached event feed", "eventId", eventID, "images", len(feed.Images), "overwrite", overwrite)
	return nil
}

// Get returns the cached feed for eventID
func (c *Cache) Get(eventID int) (*backend.EventFeed, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	feed, ok := c.feeds[eventID]
	return feed, ok
}

// FetchedAt returns when the cached feed for eventID was loaded
func (c *Cache) FetchedAt(eventID int) (time.Time, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	t, ok := c.fetchedAt[eventID]
	return t, ok
}

// Invalidate drops the cached feed so the next fetch goes to the backend
func (c *Cache) Invalidate(eventID int) {
	c.mutex.Lock()
	delete(c.feeds, eventID)
	delete(c.fetchedAt, eventID)
	c.mutex.Unlock()
}
