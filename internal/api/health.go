package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rickgao/inkwell/internal/transport"
	"github.com/rickgao/inkwell/internal/version"
)

// StatusOK is the status a serving backend reports.
const StatusOK = "ok"

// Health is the response of GET /health.
type Health struct {
	Status     string                     `json:"status"`
	Version    version.Info               `json:"version"`
	Windows    int                        `json:"windows"`
	Components map[string]json.RawMessage `json:"components,omitempty"`
}

// Ready reports whether the backend is serving.
func (h *Health) Ready() bool {
	return h.Status == StatusOK
}

// Component decodes the named entry of Components into v. ok is false when
// the backend did not report it.
func (h *Health) Component(name string, v any) (ok bool, err error) {
	raw, ok := h.Components[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode component %s: %w", name, err)
	}
	return true, nil
}

// Health fetches the backend status once.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(transport.TokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodySize)
	if resp.StatusCode != http.StatusOK {
		var reply struct {
			Error string `json:"error"`
		}
		json.NewDecoder(body).Decode(&reply)
		return nil, &StatusError{Code: resp.StatusCode, Reason: reply.Error}
	}

	var h Health
	if err := json.NewDecoder(body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	if !h.Ready() {
		return &h, fmt.Errorf("status %q: %w", h.Status, ErrNotReady)
	}
	return &h, nil
}

// WaitReady polls /health until the backend is serving or ctx ends.
// Refused connections and not-ready answers are retried; anything else,
// such as a rejected token, is returned at once.
func (c *Client) WaitReady(ctx context.Context) (*Health, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		h, err := c.Health(ctx)
		if err == nil {
			return h, nil
		}
		if !transient(err) {
			return nil, err
		}
		c.logger.Debug("backend not ready", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w (last error: %v)", c.baseURL, ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// IsUnauthorized reports whether err came from a rejected token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
