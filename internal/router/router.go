package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/inkwell/internal/transport"
)

// handlerFunc handles one command. content is never nil.
type handlerFunc func(r *Router, content any) error

// Router dispatches UI commands to the controller and sends replies back.
// Commands are handled one at a time on a single goroutine.
type Router struct {
	cfg       Config
	ctrl      Controller
	prefs     ConfigService
	transport Transport
	logger    *slog.Logger

	handlers map[string]handlerFunc
	inbound  *GrowableBuffer[Inbound]

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu        sync.RWMutex
	received  int64
	handled   int64
	malformed int64
	unknown   int64
	failed    int64
	sent      int64
	dropped   int64
}

// NewRouter creates a router and registers it as the listener on Channel.
func NewRouter(cfg Config, ctrl Controller, prefs ConfigService, tr Transport, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ctrl == nil || prefs == nil || tr == nil {
		return nil, errors.New("router requires a controller, a config service and a transport")
	}

	r := &Router{
		cfg:       cfg,
		ctrl:      ctrl,
		prefs:     prefs,
		transport: tr,
		logger:    logger,
		handlers:  commandTable(),
		inbound:   NewGrowableBuffer[Inbound](cfg.InboundBufferSize, cfg.MaxInboundBuffer),
	}

	if err := tr.Listen(Channel, r.enqueue); err != nil {
		return nil, fmt.Errorf("register %q listener: %w", Channel, err)
	}

	return r, nil
}

// Start begins dispatching queued messages.
func (r *Router) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)
	go r.routeLoop()
	go func() {
		defer r.wg.Done()
		<-ctx.Done()
		r.inbound.Close()
	}()

	r.logger.Info("command router started",
		"commands", len(r.handlers),
		"inbound_buffer", r.cfg.InboundBufferSize,
	)

	return nil
}

// Stop stops accepting messages and waits for queued ones to be handled.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping command router")

	if r.cancel != nil {
		r.cancel()
	} else {
		r.inbound.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("command router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("command router stop timed out", "pending", r.inbound.Len())
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Received:  r.received,
		Handled:   r.handled,
		Malformed: r.malformed,
		Unknown:   r.unknown,
		Failed:    r.failed,
		Sent:      r.sent,
		Dropped:   r.dropped,
		Inbound:   r.inbound.Stats(),
	}
}

// enqueue is the transport listener. It copies the payload and queues it.
func (r *Router) enqueue(payload []byte) {
	in := Inbound{
		Data:       append([]byte(nil), payload...),
		ReceivedAt: time.Now(),
	}
	if !r.inbound.Send(in) {
		r.logger.Warn("inbound queue rejected message", "bytes", len(payload), "closed", r.inbound.Closed())
	}
}

// routeLoop is the dispatch goroutine.
func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		in, ok := r.inbound.Receive()
		if !ok {
			return
		}
		r.Dispatch(in.Data)
	}
}

// Dispatch decodes a raw message and handles it.
func (r *Router) Dispatch(raw []byte) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		r.count(&r.received)
		r.count(&r.malformed)
		r.logger.Warn("failed to decode message", "error", err, "bytes", len(raw))
		return
	}
	r.DispatchValue(v)
}

// DispatchValue handles an already decoded message. Messages that are not
// objects or lack a command are logged and dropped.
func (r *Router) DispatchValue(v any) {
	r.count(&r.received)

	msg, ok := v.(map[string]any)
	if !ok {
		r.count(&r.malformed)
		r.logger.Warn("message is not an object", "type", fmt.Sprintf("%T", v))
		return
	}

	command, _ := msg["command"].(string)
	if command == "" {
		r.count(&r.malformed)
		r.logger.Warn("message has no command")
		return
	}

	content := msg["content"]
	if content == nil {
		content = map[string]any{}
	}

	r.HandleEvent(command, content)
}

// HandleEvent runs the handler for command.
func (r *Router) HandleEvent(command string, content any) {
	handler, ok := r.handlers[command]
	if !ok {
		r.count(&r.unknown)
		r.logger.Warn("unknown command", "command", command)
		return
	}
	if content == nil {
		content = map[string]any{}
	}

	if err := handler(r, content); err != nil {
		r.count(&r.failed)
		r.logger.Error("command failed", "command", command, "error", err)
		return
	}

	r.count(&r.handled)
	r.logger.Debug("command handled", "command", command)
}

// Send emits a message to the active window. A nil content is sent as {}.
// Messages are dropped when no window is connected.
func (r *Router) Send(command string, content any) *Router {
	if content == nil {
		content = map[string]any{}
	}

	err := r.transport.Emit(Channel, Message{Command: command, Content: content})
	switch {
	case err == nil:
		r.count(&r.sent)
	case errors.Is(err, transport.ErrNoWindow):
		r.count(&r.dropped)
		r.logger.Debug("no window, dropping message", "command", command)
	default:
		r.count(&r.dropped)
		r.logger.Warn("failed to send message", "command", command, "error", err)
	}

	return r
}

func (r *Router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}
