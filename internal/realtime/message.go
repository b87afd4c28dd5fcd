package realtime

import (
	"encoding/json"
	"fmt"

	"talktome/internal/models"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"

	heartbeatTopic = "phoenix"
)

// Message is a channel frame in either direction.
type Message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// ChangePayload is the payload of a postgres_changes frame.
type ChangePayload struct {
	EventType string          `json:"eventType"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}

type joinPayload struct {
	Config joinConfig `json:"config"`
}

type joinConfig struct {
	PostgresChanges []changeFilter `json:"postgres_changes"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// Topic returns the channel topic for a post's comments.
func Topic(postID string) string {
	return "comments:" + postID
}

func joinMessage(postID, ref string) Message {
	payload, _ := json.Marshal(joinPayload{Config: joinConfig{
		PostgresChanges: []changeFilter{{
			Event:  "*",
			Schema: "public",
			Table:  "comments",
			Filter: "post_id=eq." + postID,
		}},
	}})
	return Message{Topic: Topic(postID), Event: eventJoin, Payload: payload, Ref: ref}
}

// ParseChange converts a postgres_changes payload into a ChangeEvent. The
// new record is used for inserts and updates, the old record for deletes.
func ParseChange(raw json.RawMessage) (models.ChangeEvent, error) {
	var p ChangePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to unmarshal change payload: %w", err)
	}

	kind, ok := models.ParseEventKind(p.EventType)
	if !ok {
		return models.ChangeEvent{}, fmt.Errorf("unknown event type %q", p.EventType)
	}

	record := p.New
	if kind == models.EventDelete {
		record = p.Old
	}
	if len(record) == 0 {
		return models.ChangeEvent{}, fmt.Errorf("%s event without a record", kind)
	}

	var comment models.Comment
	if err := json.Unmarshal(record, &comment); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if comment.ID == "" {
		return models.ChangeEvent{}, fmt.Errorf("%s event record has no id", kind)
	}
	// Delete records may carry only the primary key
	if comment.Status != "" && !comment.Status.Valid() {
		return models.ChangeEvent{}, fmt.Errorf("%s event record %s has unknown status %q", kind, comment.ID, comment.Status)
	}

	return models.ChangeEvent{Kind: kind, Comment: comment}, nil
}
