package moderation

import (
	"strings"
	"time"
)

// Config is the moderation configuration loaded from JSON.
type Config struct {
	AdminEmails []string `json:"admin_emails"`
}

// Validate normalizes the admin list and rejects blank entries.
func (c *Config) Validate() error {
	for i, email := range c.AdminEmails {
		email = normalizeEmail(email)
		if email == "" {
			return &ConfigError{
				Field:   "admin_emails",
				Message: "entry is empty",
			}
		}
		if !strings.Contains(email, "@") {
			return &ConfigError{
				Field:   "admin_emails",
				Message: "not an e-mail address: " + email,
			}
		}
		c.AdminEmails[i] = email
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "moderation config error in " + e.Field + ": " + e.Message
}

// AuditAction represents a type of moderation action
type AuditAction string

const (
	AuditActionApprove AuditAction = "approve"
	AuditActionReject  AuditAction = "reject"
)

// AuditEntry represents a logged moderation action
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	ActorID   string      `json:"actor_id"`
	CommentID string      `json:"comment_id"`
	PostID    string      `json:"post_id"`
	Timestamp time.Time   `json:"timestamp"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
