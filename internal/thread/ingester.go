package thread

import (
	"context"
	"sync"

	"talktome/internal/errs"
	"talktome/internal/models"
	"talktome/internal/realtime"

	"github.com/rs/zerolog/log"
)

// Feed opens a live change subscription for one post. The returned cancel
// function must be idempotent and must not return until delivery has stopped.
type Feed interface {
	Subscribe(ctx context.Context, postID string, handler realtime.Handler) (func(), error)
}

// Ingester feeds live change events for one post into a Store.
type Ingester struct {
	feed  Feed
	store *Store

	mu     sync.Mutex
	postID string
	cancel func()
}

// NewIngester creates an ingester writing into store.
func NewIngester(feed Feed, store *Store) *Ingester {
	return &Ingester{feed: feed, store: store}
}

// Start subscribes to postID, replacing any previous subscription. Events for
// other posts are dropped. A delete whose old record carries no post ID is
// accepted, since the subscription is already scoped to postID.
func (i *Ingester) Start(ctx context.Context, postID string) error {
	i.Stop()

	handler := func(ev models.ChangeEvent) {
		if ev.Comment.PostID != "" && ev.Comment.PostID != postID {
			log.Debug().
				Str("post_id", postID).
				Str("event_post_id", ev.Comment.PostID).
				Msg("thread: dropping event for another post")
			return
		}
		i.store.ApplyEvent(ev)
	}

	cancel, err := i.feed.Subscribe(ctx, postID, handler)
	if err != nil {
		log.Warn().Err(err).Str("post_id", postID).Msg("thread: subscribe failed")
		return errs.Wrap(errs.KindTransient, "Live updates are unavailable", err)
	}

	i.mu.Lock()
	i.postID = postID
	i.cancel = cancel
	i.mu.Unlock()

	log.Debug().Str("post_id", postID).Msg("thread: subscribed to live changes")
	return nil
}

// Stop ends the current subscription. Safe to call repeatedly.
func (i *Ingester) Stop() {
	i.mu.Lock()
	cancel := i.cancel
	postID := i.postID
	i.cancel = nil
	i.postID = ""
	i.mu.Unlock()

	if cancel != nil {
		cancel()
		log.Debug().Str("post_id", postID).Msg("thread: unsubscribed from live changes")
	}
}

// Active returns the post currently subscribed to, if any.
func (i *Ingester) Active() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.postID, i.cancel != nil
}
