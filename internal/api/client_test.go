package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/inkwell/internal/transport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:47615/", "secret")

		if c.baseURL != "http://127.0.0.1:47615" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
		}
		if c.pollInterval != DefaultPollInterval {
			t.Errorf("pollInterval = %v, want %v", c.pollInterval, DefaultPollInterval)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		hc := &http.Client{}
		c := NewClient("http://x", "", WithHTTPClient(hc), WithTimeout(time.Second), WithPollInterval(0), WithLogger(nil))
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
		if hc.Timeout != time.Second {
			t.Errorf("Timeout = %v, want 1s", hc.Timeout)
		}
		if c.pollInterval != DefaultPollInterval {
			t.Errorf("pollInterval = %v, want default kept for 0", c.pollInterval)
		}
		if c.logger == nil {
			t.Error("nil logger should keep the default")
		}
	})
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code         int
		reason       string
		wantUnauth   bool
		wantNotReady bool
		wantMsg      string
	}{
		{http.StatusUnauthorized, "invalid token", true, false, "health returned 401: invalid token"},
		{http.StatusForbidden, "", true, false, "health returned 403 Forbidden"},
		{http.StatusServiceUnavailable, "", false, true, "health returned 503 Service Unavailable"},
		{http.StatusBadGateway, "", false, true, "health returned 502 Bad Gateway"},
		{http.StatusNotFound, "", false, false, "health returned 404 Not Found"},
	}

	for _, tt := range tests {
		var err error = &StatusError{Code: tt.code, Reason: tt.reason}
		if got := errors.Is(err, ErrUnauthorized); got != tt.wantUnauth {
			t.Errorf("%d: Is(ErrUnauthorized) = %v, want %v", tt.code, got, tt.wantUnauth)
		}
		if got := errors.Is(err, ErrNotReady); got != tt.wantNotReady {
			t.Errorf("%d: Is(ErrNotReady) = %v, want %v", tt.code, got, tt.wantNotReady)
		}
		if err.Error() != tt.wantMsg {
			t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
		}
	}
}

func TestHealth(t *testing.T) {
	hub := transport.NewHub(transport.DefaultConfig(), nil)
	defer hub.Close()
	srv := transport.NewServer("127.0.0.1:0", hub, func() any {
		return map[string]any{"roots": 2}
	}, nil)
	server := httptest.NewServer(srv.Handler())
	defer server.Close()

	h, err := NewClient(server.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !h.Ready() {
		t.Errorf("Status = %q, want %q", h.Status, StatusOK)
	}
	if h.Version.Version != "dev" {
		t.Errorf("Version = %q, want %q", h.Version.Version, "dev")
	}

	var roots int
	ok, err := h.Component("roots", &roots)
	if !ok || err != nil || roots != 2 {
		t.Errorf("Component(roots) = %d, %v, %v; want 2, true, nil", roots, ok, err)
	}
	if ok, _ := h.Component("missing", &roots); ok {
		t.Error("Component(missing) ok = true, want false")
	}
}

func TestHealth_Token(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(transport.TokenHeader) != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, "secret").Health(context.Background()); err != nil {
		t.Fatalf("Health with token: %v", err)
	}

	_, err := NewClient(server.URL, "wrong").Health(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Reason != "invalid token" {
		t.Errorf("err = %#v, want reason from body", err)
	}
}

func TestHealth_NotServing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"stopping"}`))
	}))
	defer server.Close()

	h, err := NewClient(server.URL, "").Health(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if h == nil || h.Status != "stopping" {
		t.Errorf("health = %+v, want body returned with the error", h)
	}
}

func TestWaitReady(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		status       int
		wantErr      error
		wantAttempts int32
	}{
		{"ready at once", 0, http.StatusOK, nil, 1},
		{"starting up", 2, http.StatusServiceUnavailable, nil, 3},
		{"rejected token stops polling", 5, http.StatusUnauthorized, ErrUnauthorized, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				w.Write([]byte(`{"status":"ok"}`))
			}))
			defer server.Close()

			c := NewClient(server.URL, "", WithPollInterval(time.Millisecond))
			_, err := c.WaitReady(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestWaitReady_ListenerComesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	go func() {
		time.Sleep(30 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := NewClient("http://"+addr, "", WithPollInterval(5*time.Millisecond))
	if _, err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
}

func TestWaitReady_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, "", WithPollInterval(10*time.Millisecond)).WaitReady(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
