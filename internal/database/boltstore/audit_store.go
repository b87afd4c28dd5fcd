package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	"talktome/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

var _ moderation.AuditLog = (*AuditStore)(nil)

// AuditStore persists moderation actions taken from this client.
type AuditStore struct {
	db *bolt.DB
}

// LogAction records a moderation action.
func (s *AuditStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationAuditLog)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketModerationAuditLog)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		// Zero-padded timestamp keys iterate in chronological order
		key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

		return bucket.Put([]byte(key), data)
	})
}

// ListAuditLog returns up to limit entries, newest first. A non-positive
// limit returns every entry.
func (s *AuditStore) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	var entries []moderation.AuditEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketModerationAuditLog)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}
