package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 47615
	DefaultReadLimit         = 16 << 20 // whole documents travel in one frame
	DefaultWriteTimeout      = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultRateLimit         = 50.0
	DefaultRateBurst         = 100
	DefaultOutboxSize        = 256
	DefaultInboundBufferSize = 64
	DefaultRescanInterval    = 30 * time.Second
	DefaultJournalMode       = "WAL"
	DefaultBusyTimeout       = 5 * time.Second
	DefaultAutosaveBatchSize = 50
	DefaultAutosaveFlush     = 2 * time.Second
	DefaultAutosaveBuffer    = 128
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"

	dataDirName = "inkwell"
)

// DefaultExtensions are the file extensions shown in the workspace tree.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// DataDir returns the per-user directory holding preferences, the autosave
// database and dictionaries.
func DataDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "." + dataDirName
	}
	return filepath.Join(base, dataDirName)
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = DefaultPongWait
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = DefaultRateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}
	if c.Server.OutboxSize == 0 {
		c.Server.OutboxSize = DefaultOutboxSize
	}

	// Router defaults
	if c.Router.InboundBufferSize == 0 {
		c.Router.InboundBufferSize = DefaultInboundBufferSize
	}

	// Workspace defaults
	if len(c.Workspace.Extensions) == 0 {
		c.Workspace.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.Workspace.RescanInterval == 0 {
		c.Workspace.RescanInterval = DefaultRescanInterval
	}

	dataDir := DataDir()

	// Storage defaults
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(dataDir, "autosave.db")
	}
	if c.Storage.JournalMode == "" {
		c.Storage.JournalMode = DefaultJournalMode
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = DefaultBusyTimeout
	}

	// Autosave defaults
	if c.Autosave.BatchSize == 0 {
		c.Autosave.BatchSize = DefaultAutosaveBatchSize
	}
	if c.Autosave.FlushInterval == 0 {
		c.Autosave.FlushInterval = DefaultAutosaveFlush
	}
	if c.Autosave.BufferSize == 0 {
		c.Autosave.BufferSize = DefaultAutosaveBuffer
	}

	if c.Preferences.Path == "" {
		c.Preferences.Path = filepath.Join(dataDir, "preferences.yaml")
	}
	if c.Dictionaries.Path == "" {
		c.Dictionaries.Path = filepath.Join(dataDir, "dictionaries")
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
