package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"talktome/internal/errs"
	"talktome/internal/models"
	"talktome/internal/retry"
	"talktome/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls []models.Status
	errs  []error
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, status)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *memoryAudit) LogAction(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.entries...), nil
}

var (
	adminSession  = session.Session{User: &session.User{ID: "admin-1", Email: "admin@example.com"}, IsAdmin: true}
	readerSession = session.Session{User: &session.User{ID: "reader-1", Email: "reader@example.com"}}
)

func pendingComment() models.Comment {
	return models.Comment{ID: "c1", PostID: "p1", AuthorID: "reader-1", Content: "hi", Status: models.StatusPending}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: retry.MaxRetries, Delay: time.Millisecond}
}

func TestWorkflow_ApproveAndReject(t *testing.T) {
	updater := &fakeUpdater{}
	audit := &memoryAudit{}
	w := NewWorkflow(updater, audit).WithPolicy(fastPolicy())

	require.NoError(t, w.Approve(context.Background(), adminSession, pendingComment()))
	require.NoError(t, w.Reject(context.Background(), adminSession, pendingComment()))

	assert.Equal(t, []models.Status{models.StatusApproved, models.StatusRejected}, updater.calls)

	entries, err := audit.ListAuditLog(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, AuditActionApprove, entries[0].Action)
	assert.Equal(t, "admin-1", entries[0].ActorID)
	assert.Equal(t, "c1", entries[0].CommentID)
	assert.NotEmpty(t, entries[0].ID)
}

func TestWorkflow_RequiresAdmin(t *testing.T) {
	tests := []struct {
		name string
		sess session.Session
	}{
		{"signed out", session.Session{}},
		{"non-admin", readerSession},
		{"admin flag without user", session.Session{IsAdmin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updater := &fakeUpdater{}
			w := NewWorkflow(updater, nil).WithPolicy(fastPolicy())

			err := w.Approve(context.Background(), tt.sess, pendingComment())
			require.Error(t, err)
			assert.Equal(t, errs.KindAuthorization, errs.KindOf(err))
			assert.Empty(t, updater.calls, "no network call without admin rights")
		})
	}
}

func TestWorkflow_OnlyPendingTransitions(t *testing.T) {
	for _, status := range []models.Status{models.StatusApproved, models.StatusRejected, models.StatusDeleted} {
		t.Run(string(status), func(t *testing.T) {
			updater := &fakeUpdater{}
			w := NewWorkflow(updater, nil).WithPolicy(fastPolicy())

			c := pendingComment()
			c.Status = status
			err := w.Reject(context.Background(), adminSession, c)
			assert.Equal(t, errs.KindInvalidTransition, errs.KindOf(err))
			assert.Empty(t, updater.calls)
		})
	}
}

func TestWorkflow_RetriesTransientFailures(t *testing.T) {
	transient := errs.Transient("Network error", errors.New("connection reset"))
	updater := &fakeUpdater{errs: []error{transient, transient}}
	w := NewWorkflow(updater, nil).WithPolicy(fastPolicy())

	require.NoError(t, w.Approve(context.Background(), adminSession, pendingComment()))
	assert.Len(t, updater.calls, 3)
}

func TestWorkflow_ServerRejectionIsTerminal(t *testing.T) {
	denied := errs.Unauthorized("You do not have permission to do that")
	updater := &fakeUpdater{errs: []error{denied}}
	audit := &memoryAudit{}
	w := NewWorkflow(updater, audit).WithPolicy(fastPolicy())

	err := w.Approve(context.Background(), adminSession, pendingComment())
	require.Error(t, err)
	assert.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	assert.Equal(t, "You do not have permission to do that", errs.Message(err))
	assert.Len(t, updater.calls, 1)
	assert.Empty(t, audit.entries)
}
