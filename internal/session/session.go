// Package session exposes the signed-in user to the comment engine.
package session

import (
	"sync"

	"talktome/internal/models"
)

// User is the authenticated account as reported by the identity provider.
type User struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// AvatarURL returns the provider-supplied avatar, falling back to Gravatar.
func (u *User) AvatarURL() string {
	if u == nil {
		return ""
	}
	return models.AvatarURL(u.Metadata, u.Email)
}

// Session is a point-in-time view of who is signed in.
type Session struct {
	User    *User
	IsAdmin bool
}

// SignedIn reports whether a user is present. Writes require a signed-in user.
func (s Session) SignedIn() bool {
	return s.User != nil
}

// Admin reports whether the session grants administrator rights. A session
// without a user is never an administrator, whatever IsAdmin says.
func (s Session) Admin() bool {
	return s.User != nil && s.IsAdmin
}

// UserID returns the signed-in user's ID, or "" when signed out.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Provider supplies the current session. The answer may change between calls.
type Provider interface {
	Current() Session
}

// AdminChecker decides whether an e-mail address belongs to an administrator.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// Static is a Provider holding a user that can be swapped at any time.
type Static struct {
	mu     sync.RWMutex
	user   *User
	admins AdminChecker
}

// NewStatic creates a provider for user. admins may be nil, in which case
// nobody is an administrator.
func NewStatic(admins AdminChecker, user *User) *Static {
	return &Static{user: user, admins: admins}
}

// SetUser replaces the signed-in user. nil signs out.
func (s *Static) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Current implements Provider.
func (s *Static) Current() Session {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()

	if user == nil {
		return Session{}
	}
	isAdmin := s.admins != nil && user.Email != "" && s.admins.IsAdmin(user.Email)
	return Session{User: user, IsAdmin: isAdmin}
}
