package router

import (
	"time"

	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/search"
	"github.com/rickgao/inkwell/internal/transport"
	"github.com/rickgao/inkwell/internal/workspace"
)

// Channel is the transport channel carrying router traffic in both directions.
const Channel = "message"

// NoEmit is sent as content of a toggle command to tell the UI to apply the
// change without sending it back.
const NoEmit = "no-emit"

// Config holds configuration for the Router.
type Config struct {
	InboundBufferSize int // Initial capacity of the inbound queue
	MaxInboundBuffer  int // 0 = unbounded
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		InboundBufferSize: 64,
		MaxInboundBuffer:  4096,
	}
}

// Message is the payload exchanged with the UI.
type Message struct {
	Command string `json:"command"`
	Content any    `json:"content"`
}

// Inbound is a raw frame payload waiting to be dispatched.
type Inbound struct {
	Data       []byte
	ReceivedAt time.Time
}

// Stats contains runtime statistics.
type Stats struct {
	Received  int64       `json:"received"`
	Handled   int64       `json:"handled"`
	Malformed int64       `json:"malformed"`
	Unknown   int64       `json:"unknown"`
	Failed    int64       `json:"failed"`
	Sent      int64       `json:"sent"`
	Dropped   int64       `json:"dropped"`
	Inbound   BufferStats `json:"inbound"`
}

// Transport is the channel-based connection to the UI.
type Transport interface {
	Listen(channel string, fn transport.ListenerFunc) error
	Emit(channel string, payload any) error
}

// ConfigService gives access to user preferences.
type ConfigService interface {
	Get(key string) (any, bool)
	Toggle(key string) (bool, error)
	Validate(values map[string]any) error
	Update(values map[string]any) error
	Snapshot() map[string]any
	Env(key string) (string, bool)
	SupportedLanguages() []prefs.Language
}

// Controller is the application controller the router forwards commands to.
type Controller interface {
	Paths() []workspace.Node
	FindFile(h workspace.Hash) (*workspace.File, error)
	FileWithContent(h workspace.Hash) (workspace.FileView, error)

	OpenFile(h workspace.Hash) error
	SelectDir(h workspace.Hash) error
	NewFile(req NewFileRequest) error
	NewDir(req NewDirRequest) error
	SaveFile(req SaveRequest) error
	AutosaveFile(req SaveRequest) error
	OpenDir(req OpenDirRequest) error
	RevertFile() error
	CloseFile() error

	CurrentFile() (workspace.Hash, bool)
	CurrentDir() (workspace.Hash, bool)
	RemoveFile(h workspace.Hash) error
	RemoveDir(h workspace.Hash) error

	SearchFile(h workspace.Hash, terms []search.Term) (search.Result, error)
	Export(req ExportRequest) error
	RenameFile(req RenameRequest) error
	RenameDir(req RenameRequest) error
	Move(req MoveRequest) error

	RetrieveDictionaryFile(kind, lang string) error
}

// Request payloads decoded from message content.

// NewFileRequest creates a file. Hash is the parent directory (0 = current).
type NewFileRequest struct {
	Hash workspace.Hash `json:"hash"`
	Name string         `json:"name"`
}

// NewDirRequest creates a directory. Hash is the parent directory (0 = current).
type NewDirRequest struct {
	Hash workspace.Hash `json:"hash"`
	Name string         `json:"name"`
}

// SaveRequest carries editor content for a file.
type SaveRequest struct {
	Hash    workspace.Hash `json:"hash"`
	Content string         `json:"content"`
}

// OpenDirRequest adds a directory to the workspace.
type OpenDirRequest struct {
	Path string `json:"path"`
}

// ExportRequest exports a file. Ext is html, md or txt.
type ExportRequest struct {
	Hash workspace.Hash `json:"hash"`
	Ext  string         `json:"ext"`
}

// RenameRequest renames a file or directory.
type RenameRequest struct {
	Hash workspace.Hash `json:"hash"`
	Name string         `json:"name"`
}

// MoveRequest moves From into directory To.
type MoveRequest struct {
	From workspace.Hash `json:"from"`
	To   workspace.Hash `json:"to"`
}

// searchRequest is the content of file-search.
type searchRequest struct {
	Hash  workspace.Hash `json:"hash"`
	Terms []search.Term  `json:"terms"`
}

// Reply payloads.

// KeyValue is the reply to config-get and config-get-env.
type KeyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SearchReply is the reply to file-search.
type SearchReply struct {
	Hash   workspace.Hash `json:"hash"`
	Result search.Result  `json:"result"`
}
