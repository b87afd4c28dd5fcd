package moderation

import (
	"context"
	"fmt"
	"time"

	"talktome/internal/errs"
	"talktome/internal/metrics"
	"talktome/internal/models"
	"talktome/internal/retry"
	"talktome/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Workflow performs the pending → approved / rejected transitions.
// The local working set is never updated here; the resulting change event is
// the source of truth.
type Workflow struct {
	updater StatusUpdater
	policy  retry.Policy
	audit   AuditLog
}

// NewWorkflow creates a workflow that writes through updater. audit may be nil.
func NewWorkflow(updater StatusUpdater, audit AuditLog) *Workflow {
	return &Workflow{
		updater: updater,
		policy:  retry.DefaultPolicy(),
		audit:   audit,
	}
}

// WithPolicy overrides the retry policy.
func (w *Workflow) WithPolicy(p retry.Policy) *Workflow {
	w.policy = p
	return w
}

// Approve moves a pending comment to approved.
func (w *Workflow) Approve(ctx context.Context, sess session.Session, comment models.Comment) error {
	return w.transition(ctx, sess, comment, models.StatusApproved, AuditActionApprove)
}

// Reject moves a pending comment to rejected.
func (w *Workflow) Reject(ctx context.Context, sess session.Session, comment models.Comment) error {
	return w.transition(ctx, sess, comment, models.StatusRejected, AuditActionReject)
}

// CanModerate reports whether sess may approve or reject comments.
func CanModerate(sess session.Session) bool {
	return sess.Admin()
}

func (w *Workflow) transition(ctx context.Context, sess session.Session, comment models.Comment, to models.Status, action AuditAction) error {
	op := string(action)

	if !CanModerate(sess) {
		metrics.CommentsTotal.WithLabelValues(op, "denied").Inc()
		return errs.Unauthorized("Only administrators can moderate comments")
	}
	if comment.Status != models.StatusPending {
		metrics.CommentsTotal.WithLabelValues(op, "invalid").Inc()
		return errs.New(errs.KindInvalidTransition,
			fmt.Sprintf("Cannot %s a comment that is %s", action, comment.Status))
	}

	err := w.policy.Run(ctx, op, func(ctx context.Context) error {
		return w.updater.UpdateStatus(ctx, comment.ID, to)
	})
	if err != nil {
		metrics.CommentsTotal.WithLabelValues(op, "error").Inc()
		log.Error().Err(err).Str("comment_id", comment.ID).Str("action", op).Msg("moderation: status update failed")
		return fmt.Errorf("failed to %s comment %s: %w", action, comment.ID, err)
	}

	metrics.CommentsTotal.WithLabelValues(op, "success").Inc()
	log.Info().
		Str("comment_id", comment.ID).
		Str("post_id", comment.PostID).
		Str("actor", sess.UserID()).
		Str("action", op).
		Msg("moderation: comment status updated")

	if w.audit != nil {
		entry := AuditEntry{
			ID:        uuid.NewString(),
			Action:    action,
			ActorID:   sess.UserID(),
			CommentID: comment.ID,
			PostID:    comment.PostID,
			Timestamp: time.Now().UTC(),
		}
		if err := w.audit.LogAction(ctx, entry); err != nil {
			log.Warn().Err(err).Str("comment_id", comment.ID).Msg("moderation: failed to write audit entry")
		}
	}

	return nil
}
