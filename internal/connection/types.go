package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/transport"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Incoming is a frame received from the backend.
type Incoming struct {
	Frame      transport.Frame
	ReceivedAt time.Time // Local timestamp when ReadMessage returned
}

// Message decodes a router message. It fails for frames on other channels.
func (in Incoming) Message() (router.Message, error) {
	var msg router.Message
	if in.Frame.Channel != router.Channel {
		return msg, fmt.Errorf("frame on channel %q is not a router message", in.Frame.Channel)
	}
	if err := json.Unmarshal(in.Frame.Payload, &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// ClientConfig configures a websocket client.
type ClientConfig struct {
	URL          string        // Websocket URL (e.g., ws://127.0.0.1:47615/ws)
	Token        string        // Shared secret sent in the token header (empty = none)
	PingInterval time.Duration // How often the client pings the backend
	PingTimeout  time.Duration // Max time without a pong before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Incoming channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}
