package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for an inkwell backend.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Router       RouterConfig       `yaml:"router"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Storage      StorageConfig      `yaml:"storage"`
	Autosave     AutosaveConfig     `yaml:"autosave"`
	Preferences  PreferencesConfig  `yaml:"preferences"`
	Dictionaries DictionariesConfig `yaml:"dictionaries"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds the local websocket server the UI window connects to.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Token        string        `yaml:"token"` // Shared secret the UI presents on /ws (empty = no check)
	ReadLimit    int64         `yaml:"read_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PongWait     time.Duration `yaml:"pong_wait"`
	RateLimit    float64       `yaml:"rate_limit"` // Inbound frames per second per window
	RateBurst    int           `yaml:"rate_burst"`
	OutboxSize   int           `yaml:"outbox_size"`
}

// RouterConfig holds command router settings.
type RouterConfig struct {
	InboundBufferSize int `yaml:"inbound_buffer_size"`
}

// WorkspaceConfig holds the directories opened at startup.
type WorkspaceConfig struct {
	Roots          []string      `yaml:"roots"`
	Extensions     []string      `yaml:"extensions"`
	RescanInterval time.Duration `yaml:"rescan_interval"` // Negative disables the watcher
}

// StorageConfig holds the SQLite autosave database.
type StorageConfig struct {
	Path        string        `yaml:"path"`
	JournalMode string        `yaml:"journal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AutosaveConfig holds autosave writer settings.
type AutosaveConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PreferencesConfig locates the user preferences file.
type PreferencesConfig struct {
	Path string `yaml:"path"`
}

// DictionariesConfig locates installed Hunspell dictionaries.
type DictionariesConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Addr returns the listen address for the server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
