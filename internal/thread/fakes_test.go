package thread

import (
	"context"
	"errors"
	"sync"
	"time"

	"talktome/internal/models"
	"talktome/internal/realtime"
	"talktome/internal/retry"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func comment(id string, status models.Status, minute int) models.Comment {
	return models.Comment{
		ID:        id,
		PostID:    "p1",
		AuthorID:  "author-" + id,
		Content:   "comment " + id,
		Status:    status,
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: retry.MaxRetries, Delay: time.Millisecond}
}

type fetchResult struct {
	comments []models.Comment
	err      error
}

// fakeFetcher returns scripted results in order, repeating the last one.
// When block is set, each call waits for it (or for ctx) first.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	results []fetchResult
	block   chan struct{}
}

func (f *fakeFetcher) FetchComments(ctx context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	f.calls++
	var r fetchResult
	if len(f.results) > 0 {
		r = f.results[0]
		if len(f.results) > 1 {
			f.results = f.results[1:]
		}
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.comments, r.err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFeed records the active subscription so tests can push events.
type fakeFeed struct {
	mu        sync.Mutex
	err       error
	postIDs   []string
	handler   realtime.Handler
	cancelled int
}

func (f *fakeFeed) Subscribe(ctx context.Context, postID string, handler realtime.Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postIDs = append(f.postIDs, postID)
	if f.err != nil {
		return nil, f.err
	}
	f.handler = handler
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.cancelled++
			f.handler = nil
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeFeed) emit(ev models.ChangeEvent) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

func (f *fakeFeed) Cancelled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type fakeWriter struct {
	mu       sync.Mutex
	inserted []models.NewComment
	errs     []error
}

func (w *fakeWriter) InsertComment(ctx context.Context, c models.NewComment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inserted = append(w.inserted, c)
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	return nil
}

func (w *fakeWriter) Inserted() []models.NewComment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.NewComment(nil), w.inserted...)
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates map[string]models.Status
}

func (u *fakeUpdater) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.updates == nil {
		u.updates = make(map[string]models.Status)
	}
	u.updates[id] = status
	return nil
}

var errBoom = errors.New("boom")
