package moderation

import (
	"context"

	"talktome/internal/models"
)

// AuditLog records moderation actions. Implementations must be safe for
// concurrent use.
type AuditLog interface {
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}

// StatusUpdater writes a comment's moderation status to the remote store.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, commentID string, status models.Status) error
}
