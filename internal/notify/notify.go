// Package notify delivers short status announcements to assistive technology
// or, in the binary, to the log.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Priority controls how urgently an announcement interrupts the user.
type Priority string

const (
	// Polite announcements wait for the user to be idle.
	Polite Priority = "polite"
	// Assertive announcements interrupt immediately. Used for failures.
	Assertive Priority = "assertive"
)

// Notifier announces a message.
type Notifier interface {
	Notify(message string, priority Priority)
}

// Log writes announcements to the global zerolog logger.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(message string, priority Priority) {
	var ev *zerolog.Event
	if priority == Assertive {
		ev = log.Warn()
	} else {
		ev = log.Info()
	}
	ev.Str("priority", string(priority)).Msg("notify: " + message)
}

// Discard drops every announcement.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(string, Priority) {}

// Announcement is a recorded call to Notify.
type Announcement struct {
	Message  string
	Priority Priority
}

// Recorder keeps announcements in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Announcement
}

// Notify implements Notifier.
func (r *Recorder) Notify(message string, priority Priority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, Announcement{Message: message, Priority: priority})
}

// Announcements returns a copy of everything recorded so far.
func (r *Recorder) Announcements() []Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Announcement(nil), r.all...)
}

// Last returns the most recent announcement.
func (r *Recorder) Last() (Announcement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Announcement{}, false
	}
	return r.all[len(r.all)-1], true
}
