package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"talktome/internal/metrics"
	"talktome/internal/models"
	"talktome/internal/tracing"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Handler receives change events for one subscription, one at a time and in
// the order they were received.
type Handler func(models.ChangeEvent)

// Client opens change-feed subscriptions. Safe for concurrent use.
type Client struct {
	config Config

	// Zstd decoder for compressed messages
	zstdDecoder *zstd.Decoder

	// Stats
	eventsReceived atomic.Int64
	bytesReceived  atomic.Int64
	connected      atomic.Int64
}

// NewClient creates a change feed client
func NewClient(config Config) (*Client, error) {
	config.applyDefaults()
	if config.Endpoint == "" {
		return nil, fmt.Errorf("realtime: endpoint is required")
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("realtime: failed to create zstd decoder: %w", err)
	}

	return &Client{config: config, zstdDecoder: decoder}, nil
}

// Close releases the decoder. Subscriptions must be cancelled first.
func (c *Client) Close() {
	if c.zstdDecoder != nil {
		c.zstdDecoder.Close()
	}
}

// IsConnected returns true if at least one subscription has a live connection
func (c *Client) IsConnected() bool {
	return c.connected.Load() > 0
}

// Stats returns client statistics
func (c *Client) Stats() (eventsReceived, bytesReceived int64) {
	return c.eventsReceived.Load(), c.bytesReceived.Load()
}

// Subscribe joins the change channel for postID and delivers its events to
// handler until the returned cancel function is called or ctx ends. The
// first connection is made synchronously and its failure is returned; later
// drops are retried with exponential back-off. cancel is idempotent and
// waits for the reader goroutine to exit.
func (c *Client) Subscribe(ctx context.Context, postID string, handler Handler) (func(), error) {
	ctx, span := tracing.FeedSpan(ctx, Topic(postID))
	conn, err := c.connect(ctx, postID)
	tracing.EndWithError(span, err)
	span.End()
	if err != nil {
		metrics.FeedErrorsTotal.Inc()
		return nil, err
	}

	s := &subscription{
		client:  c,
		postID:  postID,
		handler: handler,
		stopCh:  make(chan struct{}),
	}
	s.setConn(conn)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, conn)
	}()

	return s.cancel, nil
}

// connect dials the endpoint and joins the post's channel.
func (c *Client) connect(ctx context.Context, postID string) (*websocket.Conn, error) {
	wsURL, err := c.buildWebSocketURL()
	if err != nil {
		return nil, fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	join := joinMessage(postID, uuid.NewString())
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join %s: %w", join.Topic, err)
	}

	log.Info().Str("topic", join.Topic).Msg("realtime: joined channel")
	return conn, nil
}

func (c *Client) buildWebSocketURL() (string, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if c.config.APIKey != "" {
		q.Set("apikey", c.config.APIKey)
	}
	q.Set("vsn", "1.0.0")
	if c.config.Compress {
		q.Set("compress", "true")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decode returns the JSON form of a frame, decompressing zstd frames.
func (c *Client) decode(data []byte) ([]byte, error) {
	// Zstd compressed data starts with magic number 0x28 0xB5 0x2F 0xFD
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xB5 && data[2] == 0x2F && data[3] == 0xFD {
		decompressed, err := c.zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress message: %w", err)
		}
		return decompressed, nil
	}
	return data, nil
}

// subscription is one joined channel with its reader goroutine.
type subscription struct {
	client  *Client
	postID  string
	handler Handler

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (s *subscription) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *subscription) cancel() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.connMu.Lock()
		if s.conn != nil {
			s.writeMu.Lock()
			s.conn.WriteJSON(Message{Topic: Topic(s.postID), Event: eventLeave, Ref: uuid.NewString()})
			s.writeMu.Unlock()
			s.conn.Close()
		}
		s.connMu.Unlock()
	})
	s.wg.Wait()
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// run consumes conn, then reconnects until cancelled.
func (s *subscription) run(ctx context.Context, conn *websocket.Conn) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.client.config.MinBackoff
	bo.MaxInterval = s.client.config.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	topic := Topic(s.postID)

	for {
		if conn != nil {
			err := s.consume(ctx, conn)
			if s.stopped() || ctx.Err() != nil {
				log.Info().Str("topic", topic).Msg("realtime: subscription stopped")
				return
			}
			metrics.FeedErrorsTotal.Inc()
			log.Warn().Err(err).Str("topic", topic).Msg("realtime: connection error")
			// A connection that delivered anything counts as healthy
			bo.Reset()
		}

		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(wait):
		}

		var err error
		conn, err = s.client.connect(ctx, s.postID)
		if err != nil {
			metrics.FeedErrorsTotal.Inc()
			log.Warn().Err(err).Str("topic", topic).Msg("realtime: reconnect failed")
			conn = nil
			continue
		}

		// cancel may have run while dialing
		s.connMu.Lock()
		if s.stopped() {
			s.connMu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()
		log.Info().Str("topic", topic).Msg("realtime: reconnected")
	}
}

// consume reads frames until the connection fails or the subscription stops.
func (s *subscription) consume(ctx context.Context, conn *websocket.Conn) error {
	c := s.client
	c.connected.Add(1)
	metrics.FeedConnectionState.Set(1)

	hbDone := make(chan struct{})
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		s.heartbeat(ctx, conn, hbDone)
	}()

	defer func() {
		close(hbDone)
		hbWG.Wait()
		s.connMu.Lock()
		conn.Close()
		if s.conn == conn {
			s.conn = nil
		}
		s.connMu.Unlock()
		if c.connected.Add(-1) == 0 {
			metrics.FeedConnectionState.Set(0)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		c.bytesReceived.Add(int64(len(data)))

		if err := s.processMessage(data); err != nil {
			metrics.FeedErrorsTotal.Inc()
			log.Warn().Err(err).Str("post_id", s.postID).Msg("realtime: failed to process message")
		}
	}
}

// heartbeat keeps conn alive and closes it when ctx ends so the blocked
// reader returns.
func (s *subscription) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.client.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteJSON(Message{Topic: heartbeatTopic, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: uuid.NewString()})
			s.writeMu.Unlock()
			if err != nil {
				log.Debug().Err(err).Msg("realtime: heartbeat failed")
				return
			}
		}
	}
}

func (s *subscription) processMessage(data []byte) error {
	data, err := s.client.decode(data)
	if err != nil {
		return err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		// Log the first few bytes for debugging
		preview := data
		if len(preview) > 50 {
			preview = preview[:50]
		}
		return fmt.Errorf("failed to unmarshal message (first bytes: %q): %w", preview, err)
	}

	switch msg.Event {
	case eventChanges:
	case eventReply, eventHeartbeat:
		return nil
	default:
		log.Debug().Str("event", msg.Event).Str("topic", msg.Topic).Msg("realtime: ignoring message")
		return nil
	}

	if msg.Topic != "" && msg.Topic != Topic(s.postID) {
		return nil
	}

	ev, err := ParseChange(msg.Payload)
	if err != nil {
		return err
	}

	s.client.eventsReceived.Add(1)
	metrics.FeedEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	log.Debug().
		Str("post_id", s.postID).
		Str("comment_id", ev.Comment.ID).
		Str("kind", string(ev.Kind)).
		Msg("realtime: processing event")

	s.handler(ev)
	return nil
}
