// Package thread keeps one post's comment working set consistent across the
// initial snapshot, live change events and local writes, and shapes it for
// display.
package thread

import (
	"context"
	"slices"
	"sync"
	"time"

	"talktome/internal/cache"
	"talktome/internal/errs"
	"talktome/internal/metrics"
	"talktome/internal/models"
	"talktome/internal/retry"
	"talktome/internal/security"
	"talktome/internal/tracing"

	"github.com/rs/zerolog/log"
)

const (
	// LoadTimeout bounds a single Load, including retries.
	LoadTimeout = 5 * time.Second
	// MaxLoadAttempts is the number of loads allowed per mount before Reload
	// is required.
	MaxLoadAttempts = 3
)

const (
	msgLoadFailed     = "Failed to load comments"
	msgLoadTimeout    = "Loading comments timed out. Please try again."
	msgLoadInProgress = "Comments are already loading"
	msgTooManyLoads   = "Failed to load comments after several attempts. Please reload."
	msgNoPost         = "No post selected"
)

// Fetcher reads a post's comments from the remote store, oldest first.
type Fetcher interface {
	FetchComments(ctx context.Context, postID string) ([]models.Comment, error)
}

// Store is the working set of comments for the mounted post. All mutations
// are serialized; events are applied one at a time in delivery order.
type Store struct {
	fetcher Fetcher
	cache   *cache.Local
	policy  retry.Policy
	timeout time.Duration

	mu         sync.Mutex
	postID     string
	comments   map[string]models.Comment
	loading    bool
	loaded     bool
	err        error
	attempts   int
	generation uint64
	// events applied since the last installed snapshot was requested,
	// collapsed to one per comment and replayed over the next one
	pending  map[string]models.ChangeEvent
	cooldown *security.Cooldown
	onChange func()
}

// NewStore creates a store. local may be nil to disable caching.
func NewStore(fetcher Fetcher, local *cache.Local) *Store {
	return &Store{
		fetcher:  fetcher,
		cache:    local,
		policy:   retry.DefaultPolicy(),
		timeout:  LoadTimeout,
		comments: make(map[string]models.Comment),
		cooldown: security.NewCooldown(security.RateLimitWindow),
	}
}

// WithPolicy overrides the retry policy used for fetches.
func (s *Store) WithPolicy(p retry.Policy) *Store {
	s.policy = p
	return s
}

// WithTimeout overrides the load deadline.
func (s *Store) WithTimeout(d time.Duration) *Store {
	s.timeout = d
	return s
}

// OnChange registers fn to run after every state change. fn is called without
// the store's lock held and may read from the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Reset discards everything held for the current post and switches to postID.
// Results of loads started before the reset are ignored.
func (s *Store) Reset(postID string) {
	s.mu.Lock()
	s.generation++
	s.postID = postID
	s.comments = make(map[string]models.Comment)
	s.loading = false
	s.loaded = false
	s.err = nil
	s.attempts = 0
	s.pending = nil
	s.cooldown.Reset()
	s.mu.Unlock()

	s.changed()
}

// Reload clears the attempt counter and error, then loads again.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.attempts = 0
	s.err = nil
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Invalidate(s.PostID())
	}
	return s.Load(ctx)
}

type loadResult struct {
	comments []models.Comment
	err      error
}

// Load fills the working set from the local cache, or from the remote store
// when the cache has nothing fresh. It waits at most the load timeout; a
// result arriving later is discarded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.postID == "" {
		s.mu.Unlock()
		return errs.New(errs.KindRequest, msgNoPost)
	}
	if s.loading {
		s.mu.Unlock()
		return errs.New(errs.KindConflict, msgLoadInProgress)
	}
	if s.attempts >= MaxLoadAttempts {
		err := errs.New(errs.KindRequest, msgTooManyLoads)
		s.err = err
		s.mu.Unlock()
		s.changed()
		return err
	}
	s.attempts++
	attempt := s.attempts
	postID := s.postID
	gen := s.generation
	s.loading = true
	s.err = nil
	if s.loaded {
		s.pending = nil
	}
	s.mu.Unlock()
	s.changed()

	if s.cache != nil {
		if comments, ok := s.cache.Get(postID); ok {
			log.Debug().Str("post_id", postID).Int("count", len(comments)).Msg("thread: loaded from cache")
			return s.finish(gen, comments, nil, false)
		}
	}

	ctx, span := tracing.LoadSpan(ctx, postID, attempt)
	defer span.End()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan loadResult, 1)
	go func() {
		comments, err := retry.Do(fetchCtx, s.policy, "fetch", func(ctx context.Context) ([]models.Comment, error) {
			return s.fetcher.FetchComments(ctx, postID)
		})
		results <- loadResult{comments: comments, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var err error
	select {
	case r := <-results:
		err = s.finish(gen, r.comments, r.err, true)
	case <-timer.C:
		metrics.LoadTimeoutsTotal.Inc()
		log.Warn().Str("post_id", postID).Dur("timeout", s.timeout).Msg("thread: load timed out")
		err = s.fail(gen, errs.Timeout(msgLoadTimeout))
	case <-ctx.Done():
		err = s.fail(gen, errs.Wrap(errs.KindTimeout, msgLoadFailed, ctx.Err()))
	}

	tracing.EndWithError(span, err)
	return err
}

// finish installs a load result if it still belongs to the current post.
func (s *Store) finish(gen uint64, comments []models.Comment, err error, fromRemote bool) error {
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			err = errs.Wrap(errs.KindInternal, msgLoadFailed, err)
		}
		log.Error().Err(err).Msg("thread: load failed")
		return s.fail(gen, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug().Msg("thread: discarding load result for previous post")
		return errs.New(errs.KindConflict, "The post changed while comments were loading")
	}

	set := make(map[string]models.Comment, len(comments))
	for _, c := range comments {
		set[c.ID] = c
	}
	for _, ev := range s.pending {
		apply(set, ev)
	}
	replayed := len(s.pending)
	s.comments = set
	s.pending = nil
	s.loading = false
	s.loaded = true
	s.err = nil
	postID := s.postID
	snapshot := s.sortedLocked()
	s.mu.Unlock()

	metrics.CommentsTotal.WithLabelValues("load", "success").Inc()
	log.Info().
		Str("post_id", postID).
		Int("count", len(snapshot)).
		Int("replayed", replayed).
		Msg("thread: comments loaded")

	if s.cache != nil && (fromRemote || replayed > 0) {
		if err := s.cache.Set(postID, snapshot); err != nil {
			log.Warn().Err(err).Str("post_id", postID).Msg("thread: failed to populate cache")
		}
	}

	s.changed()
	return nil
}

// fail ends the current load with err, unless the post has changed since.
// Buffered events are kept for the next attempt.
func (s *Store) fail(gen uint64, err error) error {
	s.mu.Lock()
	if gen == s.generation {
		s.loading = false
		s.err = err
	}
	s.mu.Unlock()

	metrics.CommentsTotal.WithLabelValues("load", "error").Inc()
	s.changed()
	return err
}

// ApplyEvent applies a live change to the working set. Inserts add or
// replace, updates replace an existing comment, deletes remove one; updates
// and deletes for unknown IDs are no-ops.
func (s *Store) ApplyEvent(ev models.ChangeEvent) {
	s.mu.Lock()
	if s.loading || !s.loaded {
		s.buffer(ev)
	}
	apply(s.comments, ev)
	postID := s.postID
	var snapshot []models.Comment
	if s.loaded && !s.loading && s.cache != nil {
		snapshot = s.sortedLocked()
	}
	s.mu.Unlock()

	// Keep the cached copy in step with the live set
	if snapshot != nil && postID != "" {
		if err := s.cache.Set(postID, snapshot); err != nil {
			log.Warn().Err(err).Str("post_id", postID).Msg("thread: failed to update cache")
		}
	}

	s.changed()
}

// buffer records ev for replay, merged with any earlier event for the same
// comment so that replaying the merged event has the same effect as replaying
// both in order.
func (s *Store) buffer(ev models.ChangeEvent) {
	if s.pending == nil {
		s.pending = make(map[string]models.ChangeEvent)
	}
	id := ev.Comment.ID
	prev, ok := s.pending[id]
	if ok && ev.Kind == models.EventUpdate {
		switch prev.Kind {
		case models.EventInsert:
			ev.Kind = models.EventInsert
		case models.EventDelete:
			return
		}
	}
	s.pending[id] = ev
}

func apply(set map[string]models.Comment, ev models.ChangeEvent) {
	id := ev.Comment.ID
	switch ev.Kind {
	case models.EventInsert:
		set[id] = ev.Comment
	case models.EventUpdate:
		if _, ok := set[id]; ok {
			set[id] = ev.Comment
		}
	case models.EventDelete:
		delete(set, id)
	}
}

// Comments returns the working set ordered by creation time, then ID.
func (s *Store) Comments() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []models.Comment {
	out := make([]models.Comment, 0, len(s.comments))
	for _, c := range s.comments {
		out = append(out, c)
	}
	slices.SortFunc(out, models.Compare)
	return out
}

// Get returns the comment with the given ID.
func (s *Store) Get(id string) (models.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	return c, ok
}

// Len returns the size of the working set.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error from the most recent load, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// PostID returns the mounted post.
func (s *Store) PostID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postID
}

// Cooldown returns the submission rate limiter for the mounted post.
func (s *Store) Cooldown() *security.Cooldown {
	return s.cooldown
}
