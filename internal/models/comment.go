package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status is the moderation state of a comment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDeleted  Status = "deleted"
)

// Valid reports whether s is one of the known moderation states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

// Author is the denormalized profile joined onto a comment by the remote store.
type Author struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// AvatarURL returns the avatar_url metadata entry, falling back to the
// Gravatar for the author's e-mail. It is empty when neither is known.
func (a *Author) AvatarURL() string {
	if a == nil {
		return ""
	}
	return AvatarURL(a.Metadata, a.Email)
}

// AvatarURL picks the provider-supplied avatar from metadata, or the Gravatar
// for email.
func AvatarURL(metadata map[string]any, email string) string {
	if url, ok := metadata["avatar_url"].(string); ok && url != "" {
		return url
	}
	if strings.TrimSpace(email) == "" {
		return ""
	}
	return GravatarURL(email, 80)
}

// GravatarURL builds the Gravatar URL for email at the given pixel size.
func GravatarURL(email string, size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=mp", hex.EncodeToString(sum[:]), size)
}

// Comment is a single message attached to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Author    *Author   `json:"author,omitempty"`
}

// Less orders comments by creation time, then by ID so that ties are stable.
func Less(a, b Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Compare is the three-way form of Less, for slices.SortFunc.
func Compare(a, b Comment) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}

// NewComment is the payload written to the remote store on submit.
type NewComment struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
	Status   Status `json:"status"`
}

// EventKind identifies the mutation carried by a ChangeEvent.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ParseEventKind maps feed spellings ("INSERT", "update", ...) to an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert", "create":
		return EventInsert, true
	case "update":
		return EventUpdate, true
	case "delete":
		return EventDelete, true
	}
	return "", false
}

// ChangeEvent is a live mutation of a single comment. For deletes, Comment
// holds the old record (at minimum its ID).
type ChangeEvent struct {
	Kind    EventKind
	Comment Comment
}
