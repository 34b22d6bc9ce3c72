package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadLimit < 1 {
		return errors.New("server.read_limit must be >= 1")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be >= 0")
	}
	if c.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1")
	}
	if c.Server.OutboxSize < 1 {
		return errors.New("server.outbox_size must be >= 1")
	}

	if c.Router.InboundBufferSize < 1 {
		return errors.New("router.inbound_buffer_size must be >= 1")
	}

	for _, ext := range c.Workspace.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("workspace.extensions entry %q must start with a dot", ext)
		}
	}

	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	switch strings.ToUpper(c.Storage.JournalMode) {
	case "WAL", "DELETE", "TRUNCATE", "MEMORY":
	default:
		return fmt.Errorf("storage.journal_mode %q is not supported", c.Storage.JournalMode)
	}

	if c.Autosave.BatchSize < 1 {
		return errors.New("autosave.batch_size must be >= 1")
	}
	if c.Autosave.FlushInterval <= 0 {
		return errors.New("autosave.flush_interval must be > 0")
	}
	if c.Autosave.BufferSize < 1 {
		return errors.New("autosave.buffer_size must be >= 1")
	}

	if c.Preferences.Path == "" {
		return errors.New("preferences.path is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	return nil
}
