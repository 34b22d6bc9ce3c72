package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rickgao/inkwell/internal/version"
)

// TokenHeader carries the shared secret on /ws requests.
const TokenHeader = "X-Inkwell-Token"

const (
	tokenQueryParam = "token"
	shutdownTimeout = 5 * time.Second
)

// HealthFunc returns extra status reported by /health.
type HealthFunc func() any

// Server is the HTTP surface in front of a Hub.
type Server struct {
	addr   string
	hub    *Hub
	health HealthFunc
	logger *slog.Logger

	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer creates a server listening on addr. health may be nil.
func NewServer(addr string, hub *Hub, health HealthFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   addr,
		hub:    hub,
		health: health,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The UI is loaded from a local origin; access is guarded by the token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/ws", s.handleWebsocket)
	engine.GET("/health", s.handleHealth)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down and disconnects all windows.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	s.hub.Close()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) handleWebsocket(c *gin.Context) {
	if !s.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if _, err := s.hub.Attach(conn); err != nil {
		s.logger.Warn("failed to attach window", "error", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": version.Get(),
		"windows": s.hub.Windows(),
	}
	if s.health != nil {
		body["components"] = s.health()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) authorized(c *gin.Context) bool {
	want := s.hub.cfg.Token
	if want == "" {
		return true
	}
	got := c.GetHeader(TokenHeader)
	if got == "" {
		got = c.Query(tokenQueryParam)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
