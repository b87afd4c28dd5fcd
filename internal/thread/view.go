package thread

import (
	"context"
	"errors"
	"fmt"

	"talktome/internal/errs"
	"talktome/internal/metrics"
	"talktome/internal/models"
	"talktome/internal/moderation"
	"talktome/internal/notify"
	"talktome/internal/retry"
	"talktome/internal/security"
	"talktome/internal/session"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Announcements made by the view.
const (
	MsgSubmitted     = "Comment submitted for moderation"
	MsgLoaded        = "Comments loaded"
	MsgApproved      = "Comment approved"
	MsgRejected      = "Comment rejected"
	MsgSignInToPost  = "Please sign in to leave a comment"
	MsgWaitToPost    = "Please wait a few seconds before posting again"
	MsgPostFailed    = "Failed to post comment"
	MsgApproveFailed = "Failed to approve comment"
	MsgRejectFailed  = "Failed to reject comment"
	MsgNotFound      = "Comment not found"
	MsgNoModeration  = "Moderation is not available"
)

// Writer submits new comments to the remote store.
type Writer interface {
	InsertComment(ctx context.Context, comment models.NewComment) error
}

// View ties a Store, its live subscription and the write paths together for
// one mounted post.
type View struct {
	store    *Store
	ingester *Ingester
	writer   Writer
	sessions session.Provider
	notifier notify.Notifier
	workflow *moderation.Workflow
	policy   retry.Policy
}

// NewView wires a view. notifier may be nil. workflow may be nil for
// read-only views, in which case Approve and Reject always fail.
func NewView(store *Store, feed Feed, writer Writer, sessions session.Provider, notifier notify.Notifier, workflow *moderation.Workflow) *View {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &View{
		store:    store,
		ingester: NewIngester(feed, store),
		writer:   writer,
		sessions: sessions,
		notifier: notifier,
		workflow: workflow,
		policy:   retry.DefaultPolicy(),
	}
}

// WithPolicy overrides the retry policy used for submissions.
func (v *View) WithPolicy(p retry.Policy) *View {
	v.policy = p
	return v
}

// Store returns the view's comment store.
func (v *View) Store() *Store {
	return v.store
}

// Mount switches the view to postID: the store is reset, then the live
// subscription and the initial load run concurrently. Both failures are
// returned joined; a subscribe failure leaves loaded comments in place.
// The subscription lives until Unmount, another Mount, or the end of ctx.
func (v *View) Mount(ctx context.Context, postID string) error {
	v.ingester.Stop()
	v.store.Reset(postID)

	var subErr, loadErr error
	var g errgroup.Group
	g.Go(func() error {
		subErr = v.ingester.Start(ctx, postID)
		return nil
	})
	g.Go(func() error {
		loadErr = v.store.Load(ctx)
		return nil
	})
	g.Wait()

	v.announceLoad(loadErr)
	if subErr != nil {
		v.notifier.Notify(errs.Message(subErr), notify.Assertive)
	}

	log.Info().Str("post_id", postID).Bool("loaded", loadErr == nil).Bool("live", subErr == nil).Msg("thread: mounted")
	return errors.Join(loadErr, subErr)
}

// Unmount stops the subscription and discards the working set.
func (v *View) Unmount() {
	v.ingester.Stop()
	v.store.Reset("")
	log.Info().Msg("thread: unmounted")
}

// Reload retries a failed load on demand.
func (v *View) Reload(ctx context.Context) error {
	err := v.store.Reload(ctx)
	v.announceLoad(err)
	return err
}

func (v *View) announceLoad(err error) {
	if err != nil {
		v.notifier.Notify(errs.Message(err), notify.Assertive)
		return
	}
	v.notifier.Notify(MsgLoaded, notify.Polite)
}

// Submit validates content and sends it for moderation. The comment is not
// added locally; it appears when its insert event arrives.
func (v *View) Submit(ctx context.Context, content string) error {
	err := v.submit(ctx, content)
	if err != nil {
		metrics.CommentsTotal.WithLabelValues("submit", string(errs.KindOf(err))).Inc()
		v.notifier.Notify(errs.Message(err), notify.Assertive)
		return err
	}

	metrics.CommentsTotal.WithLabelValues("submit", "success").Inc()
	v.notifier.Notify(MsgSubmitted, notify.Polite)
	return nil
}

func (v *View) submit(ctx context.Context, content string) error {
	sess := v.sessions.Current()
	if !sess.SignedIn() {
		return errs.Unauthorized(MsgSignInToPost)
	}

	postID := v.store.PostID()
	if postID == "" {
		return errs.New(errs.KindRequest, msgNoPost)
	}

	cleaned, err := security.Prepare(content)
	if err != nil {
		return err
	}

	cooldown := v.store.Cooldown()
	if cooldown.IsLimited() {
		log.Debug().Str("post_id", postID).Dur("remaining", cooldown.Remaining()).Msg("thread: submission rate limited")
		return errs.RateLimited(MsgWaitToPost)
	}

	comment := models.NewComment{
		PostID:   postID,
		AuthorID: sess.UserID(),
		Content:  cleaned,
		Status:   models.StatusPending,
	}

	err = v.policy.Run(ctx, "insert", func(ctx context.Context) error {
		return v.writer.InsertComment(ctx, comment)
	})
	if err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("thread: submit failed")
		if errs.KindOf(err) == errs.KindInternal {
			return errs.Wrap(errs.KindInternal, MsgPostFailed, err)
		}
		return fmt.Errorf("submitting comment: %w", err)
	}

	cooldown.Record()
	log.Info().Str("post_id", postID).Str("author_id", comment.AuthorID).Msg("thread: comment submitted")
	return nil
}

// Approve approves a pending comment in the working set.
func (v *View) Approve(ctx context.Context, commentID string) error {
	return v.moderate(ctx, commentID, (*moderation.Workflow).Approve, MsgApproved, MsgApproveFailed)
}

// Reject rejects a pending comment in the working set.
func (v *View) Reject(ctx context.Context, commentID string) error {
	return v.moderate(ctx, commentID, (*moderation.Workflow).Reject, MsgRejected, MsgRejectFailed)
}

type transition func(*moderation.Workflow, context.Context, session.Session, models.Comment) error

func (v *View) moderate(ctx context.Context, commentID string, fn transition, okMsg, failMsg string) error {
	if v.workflow == nil {
		err := errs.New(errs.KindRequest, MsgNoModeration)
		v.notifier.Notify(err.Message, notify.Assertive)
		return err
	}

	comment, ok := v.store.Get(commentID)
	if !ok {
		err := errs.New(errs.KindNotFound, MsgNotFound)
		v.notifier.Notify(err.Message, notify.Assertive)
		return err
	}

	if err := fn(v.workflow, ctx, v.sessions.Current(), comment); err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			err = errs.Wrap(errs.KindInternal, failMsg, err)
		}
		v.notifier.Notify(errs.Message(err), notify.Assertive)
		return err
	}

	v.notifier.Notify(okMsg, notify.Polite)
	return nil
}

// Visible returns the render-ready set for the current session.
func (v *View) Visible() []models.Comment {
	return Visible(v.store.Comments(), v.sessions.Current().Admin())
}

// Page returns one page of the visible set. It never fetches.
func (v *View) Page(n int) Page {
	return Paginate(v.Visible(), n)
}

// Live reports whether a change subscription is active.
func (v *View) Live() bool {
	_, ok := v.ingester.Active()
	return ok
}
