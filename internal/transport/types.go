package transport

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrChannelTaken = errors.New("channel already has a listener")
	ErrNoWindow     = errors.New("no active window")
	ErrWindowClosed = errors.New("window closed")
	ErrOutboxFull   = errors.New("window outbox full")
)

// Config holds per-window connection settings.
type Config struct {
	ReadLimit    int64         // Maximum inbound frame size in bytes
	WriteTimeout time.Duration // Deadline for each outbound write
	PongWait     time.Duration // Window is dropped when no pong arrives within this time
	RateLimit    float64       // Inbound frames per second per window (<= 0 = unlimited)
	RateBurst    int
	OutboxSize   int    // Outbound frames queued per window
	Token        string // Required on /ws when non-empty
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    16 << 20,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		RateLimit:    50,
		RateBurst:    100,
		OutboxSize:   256,
	}
}

// pingPeriod is how often windows are pinged; it must be shorter than PongWait.
func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Frame is the wire envelope for all websocket traffic.
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// ListenerFunc receives the raw payload of a frame sent on a channel.
// It runs on the sending window's read goroutine and must not block.
type ListenerFunc func(payload []byte)
