// Package cache keeps a short-lived, per-post snapshot of the last known
// comment list so that remounting a thread does not refetch it.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"talktome/internal/metrics"
	"talktome/internal/models"

	"github.com/rs/zerolog/log"
)

// CacheTTL is how long a cached comment list remains valid
const CacheTTL = 5 * time.Minute

const keyPrefix = "comments:"

// KeyValueStore is the storage the cache persists into.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Entry is the stored form of a cached comment list.
type Entry struct {
	Comments   []models.Comment `json:"comments"`
	CapturedAt time.Time        `json:"captured_at"`
}

// IsValid returns true if the entry is younger than ttl at now.
func (e *Entry) IsValid(now time.Time, ttl time.Duration) bool {
	if e == nil || e.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(e.CapturedAt) <= ttl
}

// Local is the per-post comment cache.
type Local struct {
	store KeyValueStore
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache over store with the default TTL.
func New(store KeyValueStore) *Local {
	return &Local{store: store, ttl: CacheTTL, now: time.Now}
}

// WithTTL returns a copy of the cache using ttl.
func (c *Local) WithTTL(ttl time.Duration) *Local {
	cp := *c
	cp.ttl = ttl
	return &cp
}

// Key returns the storage key for a post.
func Key(postID string) string {
	return keyPrefix + postID
}

// Get returns the cached comments for postID. Missing, expired and corrupt
// entries are all reported as absent; expired and corrupt ones are evicted.
func (c *Local) Get(postID string) ([]models.Comment, bool) {
	key := Key(postID)

	data, ok, err := c.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("post_id", postID).Msg("cache: failed to read entry")
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Str("post_id", postID).Msg("cache: discarding corrupt entry")
		c.evict(key)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	if !entry.IsValid(c.now(), c.ttl) {
		log.Debug().Str("post_id", postID).Time("captured_at", entry.CapturedAt).Msg("cache: entry expired")
		c.evict(key)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	metrics.CacheHitsTotal.Inc()
	if entry.Comments == nil {
		entry.Comments = []models.Comment{}
	}
	return entry.Comments, true
}

// Set stores comments for postID, stamped with the current time.
func (c *Local) Set(postID string, comments []models.Comment) error {
	if comments == nil {
		comments = []models.Comment{}
	}
	data, err := json.Marshal(Entry{Comments: comments, CapturedAt: c.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.store.Set(Key(postID), data); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the cached entry for postID.
func (c *Local) Invalidate(postID string) {
	c.evict(Key(postID))
}

func (c *Local) evict(key string) {
	if err := c.store.Remove(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: failed to evict entry")
	}
}
