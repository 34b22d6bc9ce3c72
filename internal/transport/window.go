package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Window is one connected UI window.
type Window struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWindow(h *Hub, conn *websocket.Conn) *Window {
	id := uuid.NewString()

	limit := rate.Inf
	if h.cfg.RateLimit > 0 {
		limit = rate.Limit(h.cfg.RateLimit)
	}
	burst := h.cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	outboxSize := h.cfg.OutboxSize
	if outboxSize < 1 {
		outboxSize = 1
	}

	return &Window{
		id:      id,
		hub:     h,
		conn:    conn,
		cfg:     h.cfg,
		logger:  h.logger.With("window", id),
		limiter: rate.NewLimiter(limit, burst),
		outbox:  make(chan []byte, outboxSize),
		done:    make(chan struct{}),
	}
}

// ID returns the window's unique identifier.
func (w *Window) ID() string {
	return w.id
}

// Send queues a raw frame for the window.
func (w *Window) Send(data []byte) error {
	select {
	case <-w.done:
		return ErrWindowClosed
	default:
	}

	select {
	case w.outbox <- data:
		return nil
	case <-w.done:
		return ErrWindowClosed
	default:
		return ErrOutboxFull
	}
}

// Close disconnects the window. Safe to call more than once.
func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.hub.detach(w)
	})
	return nil
}

// readPump reads frames until the connection fails or the window closes.
func (w *Window) readPump() {
	defer w.Close()

	if w.cfg.ReadLimit > 0 {
		w.conn.SetReadLimit(w.cfg.ReadLimit)
	}
	w.extendReadDeadline()
	w.conn.SetPongHandler(func(string) error {
		w.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					w.logger.Warn("window read failed", "error", err)
				} else {
					w.logger.Debug("window disconnected", "error", err)
				}
			}
			return
		}
		w.extendReadDeadline()

		if !w.limiter.Allow() {
			w.logger.Warn("inbound rate limit exceeded, dropping frame", "bytes", len(data))
			continue
		}

		w.hub.deliver(w, data)
	}
}

// writePump writes queued frames and keepalive pings.
func (w *Window) writePump() {
	var pings <-chan time.Time
	if period := w.cfg.pingPeriod(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		pings = ticker.C
	}

	defer w.conn.Close()

	for {
		select {
		case <-w.done:
			w.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return

		case data := <-w.outbox:
			w.conn.SetWriteDeadline(w.writeDeadline())
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				w.logger.Debug("window write failed", "error", err)
				w.Close()
				return
			}

		case <-pings:
			if err := w.conn.WriteControl(websocket.PingMessage, nil, w.writeDeadline()); err != nil {
				w.logger.Debug("failed to send ping", "error", err)
				w.Close()
				return
			}
		}
	}
}

func (w *Window) extendReadDeadline() {
	if w.cfg.PongWait > 0 {
		w.conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	}
}

func (w *Window) writeDeadline() time.Time {
	if w.cfg.WriteTimeout > 0 {
		return time.Now().Add(w.cfg.WriteTimeout)
	}
	return time.Time{}
}
