package workspace

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound      = errors.New("not found in workspace")
	ErrExists        = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid name")
	ErrNotDirectory  = errors.New("not a directory")
	ErrInvalidMove   = errors.New("cannot move a directory into itself")
	ErrRootOperation = errors.New("operation not allowed on a workspace root")
)

// Options controls which entries a scan picks up.
type Options struct {
	Extensions    []string // Lower-case, with leading dot
	IncludeHidden bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Extensions: []string{".md", ".markdown", ".txt"},
	}
}

// File is a snapshot of a file in the tree.
type File struct {
	Hash    Hash
	Name    string
	Path    string
	DirHash Hash
	ModTime time.Time
	Size    int64
}

// Dir is a snapshot of a directory in the tree.
type Dir struct {
	Hash       Hash
	Name       string
	Path       string
	ParentHash Hash // 0 for the root
	Dirs       []*Dir
	Files      []*File
}

// Node is the JSON form of the tree sent to the UI.
type Node struct {
	Type     string `json:"type"` // "directory" or "file"
	Hash     Hash   `json:"hash"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	ModTime  int64  `json:"modtime,omitempty"` // Unix milliseconds
	Size     int64  `json:"size,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// FileView is a file node together with its content.
type FileView struct {
	Node
	Content string `json:"content"`
}

// View returns the JSON form of a file.
func (f *File) View() Node {
	return Node{
		Type:    "file",
		Hash:    f.Hash,
		Name:    f.Name,
		Path:    f.Path,
		ModTime: f.ModTime.UnixMilli(),
		Size:    f.Size,
	}
}

// View returns the JSON form of a directory and everything below it.
func (d *Dir) View() Node {
	n := Node{
		Type:     "directory",
		Hash:     d.Hash,
		Name:     d.Name,
		Path:     d.Path,
		Children: make([]Node, 0, len(d.Dirs)+len(d.Files)),
	}
	for _, sub := range d.Dirs {
		n.Children = append(n.Children, sub.View())
	}
	for _, f := range d.Files {
		n.Children = append(n.Children, f.View())
	}
	return n
}
