package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks connected windows and routes frames by channel.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	windows   map[string]*Window
	active    *Window
	listeners map[string]ListenerFunc
	closed    bool
}

// NewHub creates an empty hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cfg:       cfg,
		logger:    logger,
		windows:   make(map[string]*Window),
		listeners: make(map[string]ListenerFunc),
	}
}

// Listen registers fn as the exclusive listener for channel.
func (h *Hub) Listen(channel string, fn ListenerFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[channel]; ok {
		return fmt.Errorf("%s: %w", channel, ErrChannelTaken)
	}
	h.listeners[channel] = fn
	return nil
}

// Unlisten removes the listener for channel.
func (h *Hub) Unlisten(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, channel)
}

// Emit sends payload on channel to the active window.
func (h *Hub) Emit(channel string, payload any) error {
	w := h.Active()
	if w == nil {
		return ErrNoWindow
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	data, err := json.Marshal(Frame{Channel: channel, Payload: body})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	return w.Send(data)
}

// Active returns the active window, or nil when none is connected.
func (h *Hub) Active() *Window {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// Windows returns the number of connected windows.
func (h *Hub) Windows() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// Attach takes ownership of conn, makes it the active window and starts
// its read and write goroutines.
func (h *Hub) Attach(conn *websocket.Conn) (*Window, error) {
	w := newWindow(h, conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil, ErrWindowClosed
	}
	h.windows[w.id] = w
	h.active = w
	count := len(h.windows)
	h.mu.Unlock()

	go w.writePump()
	go w.readPump()

	h.logger.Info("window attached", "window", w.id, "windows", count)
	return w, nil
}

// Close disconnects every window. Windows attaching afterwards are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	windows := make([]*Window, 0, len(h.windows))
	for _, w := range h.windows {
		windows = append(windows, w)
	}
	h.mu.Unlock()

	for _, w := range windows {
		w.Close()
	}
}

// detach removes w. When w was active, any remaining window becomes active.
func (h *Hub) detach(w *Window) {
	h.mu.Lock()
	if _, ok := h.windows[w.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.windows, w.id)
	if h.active == w {
		h.active = nil
		for _, other := range h.windows {
			h.active = other
			break
		}
	}
	count := len(h.windows)
	h.mu.Unlock()

	h.logger.Info("window detached", "window", w.id, "windows", count)
}

// deliver hands an inbound frame from w to its channel listener.
func (h *Hub) deliver(w *Window, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Warn("failed to parse frame", "window", w.id, "error", err)
		return
	}

	h.mu.Lock()
	if _, ok := h.windows[w.id]; ok {
		h.active = w
	}
	fn := h.listeners[frame.Channel]
	h.mu.Unlock()

	if fn == nil {
		h.logger.Debug("no listener for channel", "channel", frame.Channel, "window", w.id)
		return
	}
	fn(frame.Payload)
}
