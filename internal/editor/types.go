package editor

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/inkwell/internal/dictionary"
	"github.com/rickgao/inkwell/internal/export"
	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/workspace"
	"github.com/rickgao/inkwell/internal/writer"
)

// Errors
var (
	ErrNoCurrentFile = errors.New("no file is open")
	ErrNoDirectory   = errors.New("no directory selected")
	ErrMissingPath   = errors.New("path is required")
	ErrQueueFull     = errors.New("autosave queue is full")
)

// Commands pushed to the UI.
const (
	CmdFileOpen      = "file-open"
	CmdFileSaved     = "file-saved"
	CmdDirSetCurrent = "dir-set-current"
	CmdPathsUpdate   = "paths-update"
	CmdNotify        = "notify"
	CmdTypoAff       = "typo-aff"
	CmdTypoDic       = "typo-dic"
)

// DefaultFileName is used by NewFile when no name is given.
const DefaultFileName = "Untitled"

// opTimeout bounds autosave store calls made on behalf of a command.
const opTimeout = 5 * time.Second

// Notifier sends a command to the UI.
type Notifier func(command string, content any)

// Autosaver is the part of the autosave writer the controller uses.
type Autosaver interface {
	Latest(ctx context.Context, h workspace.Hash) (writer.Snapshot, bool, error)
	Forget(ctx context.Context, h workspace.Hash, at time.Time) error
}

// Deps are the collaborators of a Controller. Prefs is required; a nil
// Autosave or Queue disables autosave, a nil Dictionaries disables
// spellcheck dictionaries.
type Deps struct {
	Prefs        *prefs.Store
	Autosave     Autosaver
	Queue        *router.GrowableBuffer[writer.Snapshot]
	Exporter     *export.Exporter
	Dictionaries *dictionary.Loader
}

// OpenedFile is the content of file-open.
type OpenedFile struct {
	workspace.FileView
	Autosaved bool `json:"autosaved"` // Content comes from an autosave newer than the file
}

// HashReply carries a single hash.
type HashReply struct {
	Hash workspace.Hash `json:"hash"`
}

// Notice is the content of notify.
type Notice struct {
	Level   string `json:"level"` // info or error
	Message string `json:"message"`
}

// DictionaryReply is the content of typo-aff and typo-dic.
type DictionaryReply struct {
	Lang    string `json:"lang"`
	Content string `json:"content"`
}
