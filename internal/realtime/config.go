// Package realtime subscribes to the live comment change feed over a
// Phoenix-style WebSocket channel.
package realtime

import "time"

// Config holds configuration for the change feed client
type Config struct {
	// Endpoint is the WebSocket URL, e.g. wss://xyz.supabase.co/realtime/v1/websocket
	Endpoint string

	// APIKey is sent as the apikey query parameter
	APIKey string

	// Compress requests zstd-compressed frames. Uncompressed frames are
	// accepted either way.
	Compress bool

	// HeartbeatInterval is how often a heartbeat is sent on an open connection
	HeartbeatInterval time.Duration

	// HandshakeTimeout bounds the WebSocket handshake
	HandshakeTimeout time.Duration

	// ReadTimeout closes a connection that has been silent this long
	ReadTimeout time.Duration

	// MinBackoff and MaxBackoff bound the reconnect delay
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig(endpoint, apiKey string) Config {
	return Config{
		Endpoint:          endpoint,
		APIKey:            apiKey,
		HeartbeatInterval: 25 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       60 * time.Second,
		MinBackoff:        time.Second,
		MaxBackoff:        30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig(c.Endpoint, c.APIKey)
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
}
