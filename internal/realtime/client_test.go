package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"talktome/internal/models"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func changeFrame(t *testing.T, topic, eventType string, record string) []byte {
	t.Helper()
	payload := map[string]json.RawMessage{"eventType": json.RawMessage(`"` + eventType + `"`)}
	if eventType == "DELETE" {
		payload["old"] = json.RawMessage(record)
	} else {
		payload["new"] = json.RawMessage(record)
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Message{Topic: topic, Event: eventChanges, Payload: raw})
	require.NoError(t, err)
	return data
}

func testConfig(endpoint string) Config {
	cfg := DefaultConfig(endpoint, "anon-key")
	cfg.MinBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	return cfg
}

func collect(events chan models.ChangeEvent) Handler {
	return func(ev models.ChangeEvent) { events <- ev }
}

func receive(t *testing.T, events chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.ChangeEvent{}
	}
}

func TestSubscribe_DeliversEventsInOrder(t *testing.T) {
	joined := make(chan Message, 1)
	gotQuery := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery <- r.URL.Query().Get("apikey")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var join Message
		require.NoError(t, conn.ReadJSON(&join))
		joined <- join

		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()

		topic := Topic("p1")
		frames := [][]byte{
			[]byte(`{"topic":"comments:p1","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`),
			changeFrame(t, topic, "INSERT", `{"id":"c1","post_id":"p1","content":"hi","status":"pending"}`),
			enc.EncodeAll(changeFrame(t, topic, "UPDATE", `{"id":"c1","post_id":"p1","content":"hi","status":"approved"}`), nil),
			changeFrame(t, Topic("other"), "INSERT", `{"id":"x","post_id":"other"}`),
			[]byte(`not json`),
			changeFrame(t, topic, "DELETE", `{"id":"c1"}`),
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, f))
		}

		// Hold the connection until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(wsURL(srv)))
	require.NoError(t, err)
	defer client.Close()

	events := make(chan models.ChangeEvent, 10)
	cancel, err := client.Subscribe(context.Background(), "p1", collect(events))
	require.NoError(t, err)

	assert.Equal(t, "anon-key", <-gotQuery)
	join := <-joined
	assert.Equal(t, "comments:p1", join.Topic)
	assert.Equal(t, eventJoin, join.Event)
	assert.NotEmpty(t, join.Ref)
	assert.Contains(t, string(join.Payload), "post_id=eq.p1")

	ev := receive(t, events)
	assert.Equal(t, models.EventInsert, ev.Kind)
	assert.Equal(t, models.StatusPending, ev.Comment.Status)

	ev = receive(t, events)
	assert.Equal(t, models.EventUpdate, ev.Kind)
	assert.Equal(t, models.StatusApproved, ev.Comment.Status)

	ev = receive(t, events)
	assert.Equal(t, models.EventDelete, ev.Kind)
	assert.Equal(t, "c1", ev.Comment.ID)

	assert.True(t, client.IsConnected())
	received, _ := client.Stats()
	assert.Equal(t, int64(3), received)

	cancel()
	cancel()
	assert.False(t, client.IsConnected())
	assert.Empty(t, events)
}

func TestSubscribe_InitialDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	client, err := NewClient(testConfig(url))
	require.NoError(t, err)
	defer client.Close()

	cancel, err := client.Subscribe(context.Background(), "p1", func(models.ChangeEvent) {})
	require.Error(t, err)
	assert.Nil(t, cancel)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestSubscribe_ReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var join Message
		require.NoError(t, conn.ReadJSON(&join))

		if n == 1 {
			// Drop the first connection straight after the join
			return
		}

		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			changeFrame(t, Topic("p1"), "INSERT", `{"id":"c2","post_id":"p1"}`)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(wsURL(srv)))
	require.NoError(t, err)
	defer client.Close()

	events := make(chan models.ChangeEvent, 10)
	cancel, err := client.Subscribe(context.Background(), "p1", collect(events))
	require.NoError(t, err)
	defer cancel()

	ev := receive(t, events)
	assert.Equal(t, "c2", ev.Comment.ID)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestSubscribe_StopsWithContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(wsURL(srv)))
	require.NoError(t, err)
	defer client.Close()

	ctx, stop := context.WithCancel(context.Background())
	cancel, err := client.Subscribe(ctx, "p1", func(models.ChangeEvent) {})
	require.NoError(t, err)

	stop()

	done := make(chan struct{})
	go func() {
		cancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop after context cancellation")
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestParseChange(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    models.EventKind
		id      string
		wantErr bool
	}{
		{"insert", `{"eventType":"INSERT","new":{"id":"c1","post_id":"p1"}}`, models.EventInsert, "c1", false},
		{"update lower case", `{"eventType":"update","new":{"id":"c1"}}`, models.EventUpdate, "c1", false},
		{"delete uses old record", `{"eventType":"DELETE","new":{},"old":{"id":"c9"}}`, models.EventDelete, "c9", false},
		{"unknown type", `{"eventType":"TRUNCATE","new":{"id":"c1"}}`, "", "", true},
		{"missing record", `{"eventType":"INSERT"}`, "", "", true},
		{"record without id", `{"eventType":"INSERT","new":{"content":"x"}}`, "", "", true},
		{"known status", `{"eventType":"UPDATE","new":{"id":"c1","status":"approved"}}`, models.EventUpdate, "c1", false},
		{"unknown status", `{"eventType":"UPDATE","new":{"id":"c1","status":"spam"}}`, "", "", true},
		{"malformed", `[]`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseChange(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.id, ev.Comment.ID)
		})
	}
}
