package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/inkwell/internal/dictionary"
	"github.com/rickgao/inkwell/internal/export"
	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/search"
	"github.com/rickgao/inkwell/internal/workspace"
	"github.com/rickgao/inkwell/internal/writer"
)

// maxNameAttempts bounds the numbered suffixes tried for a new file name.
const maxNameAttempts = 1000

// Controller implements router.Controller over a set of workspace roots.
type Controller struct {
	opts   workspace.Options
	deps   Deps
	logger *slog.Logger

	mu      sync.RWMutex
	roots   []*workspace.Tree
	curFile string // Path of the open file, "" when none
	curDir  string // Path of the selected directory, "" when none
	notify  Notifier
}

var _ router.Controller = (*Controller)(nil)

// New creates a Controller with no roots.
func New(opts workspace.Options, deps Deps, logger *slog.Logger) (*Controller, error) {
	if deps.Prefs == nil {
		return nil, errors.New("editor: preferences are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.New(logger)
	}
	return &Controller{
		opts:   opts,
		deps:   deps,
		logger: logger,
	}, nil
}

// SetNotifier sets the function used to push commands to the UI.
func (c *Controller) SetNotifier(fn Notifier) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Restore opens the given roots followed by the roots saved in preferences.
// Roots that can no longer be opened are logged and skipped.
func (c *Controller) Restore(paths ...string) {
	all := append(append([]string{}, paths...), c.deps.Prefs.GetStrings(prefs.KeyOpenPaths)...)
	for _, p := range all {
		if _, err := c.addRoot(p); err != nil {
			c.logger.Warn("failed to open workspace root", "path", p, "error", err)
		}
	}
	if err := c.persistRoots(); err != nil {
		c.logger.Warn("failed to save open paths", "error", err)
	}
}

// Roots returns the absolute paths of the open roots.
func (c *Controller) Roots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.roots))
	for i, t := range c.roots {
		out[i] = t.Root()
	}
	return out
}

// Paths returns the tree of every open root.
func (c *Controller) Paths() []workspace.Node {
	c.mu.RLock()
	roots := append([]*workspace.Tree(nil), c.roots...)
	c.mu.RUnlock()

	out := make([]workspace.Node, 0, len(roots))
	for _, t := range roots {
		out = append(out, t.View())
	}
	return out
}

// FindFile returns the file with hash h in any root.
func (c *Controller) FindFile(h workspace.Hash) (*workspace.File, error) {
	t, err := c.treeOf(h)
	if err != nil {
		return nil, err
	}
	return t.FindFile(h)
}

// FindDir returns the directory with hash h in any root.
func (c *Controller) FindDir(h workspace.Hash) (*workspace.Dir, error) {
	t, err := c.treeOf(h)
	if err != nil {
		return nil, err
	}
	return t.FindDir(h)
}

// FileWithContent returns a file together with its content on disk.
func (c *Controller) FileWithContent(h workspace.Hash) (workspace.FileView, error) {
	t, err := c.treeOf(h)
	if err != nil {
		return workspace.FileView{}, err
	}
	f, err := t.FindFile(h)
	if err != nil {
		return workspace.FileView{}, err
	}
	content, err := t.ReadFile(h)
	if err != nil {
		return workspace.FileView{}, err
	}
	return workspace.FileView{Node: f.View(), Content: content}, nil
}

// OpenFile makes h the current file and sends it to the UI. An autosave
// newer than the file on disk replaces the disk content.
func (c *Controller) OpenFile(h workspace.Hash) error {
	view, err := c.FileWithContent(h)
	if err != nil {
		return err
	}
	f, err := c.FindFile(h)
	if err != nil {
		return err
	}

	opened := OpenedFile{FileView: view}
	if c.deps.Autosave != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		snap, ok, err := c.deps.Autosave.Latest(ctx, h)
		cancel()
		switch {
		case err != nil:
			c.logger.Warn("failed to load autosave", "hash", h, "error", err)
		case ok && snap.At.After(f.ModTime):
			opened.Content = snap.Content
			opened.Autosaved = true
		}
	}

	c.mu.Lock()
	c.curFile = f.Path
	c.curDir = filepath.Dir(f.Path)
	c.mu.Unlock()

	c.emit(CmdFileOpen, opened)
	return nil
}

// SelectDir makes h the current directory.
func (c *Controller) SelectDir(h workspace.Hash) error {
	d, err := c.FindDir(h)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.curDir = d.Path
	c.mu.Unlock()

	c.emit(CmdDirSetCurrent, HashReply{Hash: h})
	return nil
}

// NewFile creates a file in the requested or current directory and opens it.
// Taken names get a numbered suffix.
func (c *Controller) NewFile(req router.NewFileRequest) error {
	t, dir, err := c.targetDir(req.Hash)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultFileName
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	var h workspace.Hash
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		h, err = t.CreateFile(dir, candidate)
		if !errors.Is(err, workspace.ErrExists) {
			break
		}
	}
	if err != nil {
		return err
	}

	c.logger.Info("created file", "hash", h)
	c.emitPaths()
	return c.OpenFile(h)
}

// NewDir creates a directory in the requested or current directory.
func (c *Controller) NewDir(req router.NewDirRequest) error {
	t, parent, err := c.targetDir(req.Hash)
	if err != nil {
		return err
	}
	h, err := t.CreateDir(parent, req.Name)
	if err != nil {
		return err
	}

	c.logger.Info("created directory", "hash", h)
	c.emitPaths()
	return nil
}

// SaveFile writes content to disk and discards older autosaves.
func (c *Controller) SaveFile(req router.SaveRequest) error {
	t, err := c.treeOf(req.Hash)
	if err != nil {
		return err
	}
	savedAt := time.Now()
	if err := t.WriteFile(req.Hash, req.Content); err != nil {
		return err
	}
	c.forget(req.Hash, savedAt)

	c.emit(CmdFileSaved, HashReply{Hash: req.Hash})
	return nil
}

// AutosaveFile queues unsaved content for the autosave writer.
func (c *Controller) AutosaveFile(req router.SaveRequest) error {
	if c.deps.Queue == nil || !c.deps.Prefs.GetBool(prefs.KeyAutosave) {
		c.logger.Debug("autosave disabled, snapshot ignored", "hash", req.Hash)
		return nil
	}
	f, err := c.FindFile(req.Hash)
	if err != nil {
		return err
	}

	snap := writer.Snapshot{
		Hash:    req.Hash,
		Path:    f.Path,
		Content: req.Content,
		At:      time.Now(),
	}
	if !c.deps.Queue.Send(snap) {
		return ErrQueueFull
	}
	return nil
}

// OpenDir adds a root directory. Roots already open are ignored.
func (c *Controller) OpenDir(req router.OpenDirRequest) error {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return ErrMissingPath
	}

	added, err := c.addRoot(path)
	if err != nil {
		return err
	}
	if !added {
		c.logger.Debug("directory already open", "path", path)
		return nil
	}
	if err := c.persistRoots(); err != nil {
		return err
	}

	c.emitPaths()
	return nil
}

// RevertFile drops autosaves of the current file and reopens it from disk.
func (c *Controller) RevertFile() error {
	h, ok := c.CurrentFile()
	if !ok {
		return ErrNoCurrentFile
	}
	c.forget(h, time.Now())
	return c.OpenFile(h)
}

// CloseFile clears the current file.
func (c *Controller) CloseFile() error {
	c.mu.Lock()
	c.curFile = ""
	c.mu.Unlock()
	return nil
}

// CurrentFile returns the hash of the open file.
func (c *Controller) CurrentFile() (workspace.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.curFile == "" {
		return 0, false
	}
	return workspace.HashPath(c.curFile), true
}

// CurrentDir returns the hash of the selected directory.
func (c *Controller) CurrentDir() (workspace.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.curDir == "" {
		return 0, false
	}
	return workspace.HashPath(c.curDir), true
}

// RemoveFile deletes a file from disk.
func (c *Controller) RemoveFile(h workspace.Hash) error {
	t, err := c.treeOf(h)
	if err != nil {
		return err
	}
	f, err := t.FindFile(h)
	if err != nil {
		return err
	}
	if err := t.Remove(h); err != nil {
		return err
	}
	c.forget(h, time.Now())

	c.logger.Info("removed file", "path", f.Path)
	c.dropCurrent(f.Path)
	c.emitPaths()
	return nil
}

// RemoveDir deletes a directory from disk. Removing a root closes it
// instead; nothing on disk is deleted.
func (c *Controller) RemoveDir(h workspace.Hash) error {
	t, err := c.treeOf(h)
	if err != nil {
		return err
	}
	d, err := t.FindDir(h)
	if err != nil {
		return err
	}

	if h == t.RootHash() {
		c.mu.Lock()
		for i, r := range c.roots {
			if r == t {
				c.roots = append(c.roots[:i], c.roots[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		if err := c.persistRoots(); err != nil {
			return err
		}
		c.logger.Info("closed workspace root", "path", d.Path)
	} else {
		if err := t.Remove(h); err != nil {
			return err
		}
		c.logger.Info("removed directory", "path", d.Path)
	}

	c.dropCurrent(d.Path)
	c.emitPaths()
	return nil
}

// SearchFile searches the content of a file on disk.
func (c *Controller) SearchFile(h workspace.Hash, terms []search.Term) (search.Result, error) {
	t, err := c.treeOf(h)
	if err != nil {
		return search.Result{}, err
	}
	content, err := t.ReadFile(h)
	if err != nil {
		return search.Result{}, err
	}
	return search.Search(content, terms)
}

// Export writes a file in another format to the export directory, or next
// to the file when none is configured, and notifies the UI.
func (c *Controller) Export(req router.ExportRequest) error {
	f, err := c.FindFile(req.Hash)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(req.Ext)
	if err != nil {
		c.emit(CmdNotify, Notice{Level: "error", Message: err.Error()})
		return err
	}

	destDir := c.deps.Prefs.GetString(prefs.KeyExportDir)
	if destDir == "" {
		destDir = filepath.Dir(f.Path)
	}

	dest, err := c.deps.Exporter.ExportFile(f.Path, destDir, format)
	if err != nil {
		c.emit(CmdNotify, Notice{Level: "error", Message: fmt.Sprintf("Export of %s failed", f.Name)})
		return err
	}

	c.emit(CmdNotify, Notice{Level: "info", Message: "Exported to " + dest})
	if c.under(dest) {
		if _, err := c.Refresh(); err != nil {
			c.logger.Warn("rescan after export failed", "error", err)
		}
	}
	return nil
}

// RenameFile renames a file. The extension is kept when the new name has none.
func (c *Controller) RenameFile(req router.RenameRequest) error {
	t, err := c.treeOf(req.Hash)
	if err != nil {
		return err
	}
	f, err := t.FindFile(req.Hash)
	if err != nil {
		return err
	}
	return c.rename(t, f.Path, req)
}

// RenameDir renames a directory below a root.
func (c *Controller) RenameDir(req router.RenameRequest) error {
	t, err := c.treeOf(req.Hash)
	if err != nil {
		return err
	}
	d, err := t.FindDir(req.Hash)
	if err != nil {
		return err
	}
	return c.rename(t, d.Path, req)
}

// Move moves a file or directory into another directory, possibly in
// another root.
func (c *Controller) Move(req router.MoveRequest) error {
	src, err := c.treeOf(req.From)
	if err != nil {
		return err
	}
	dst, err := c.treeOf(req.To)
	if err != nil {
		return err
	}
	oldPath, err := pathOf(src, req.From)
	if err != nil {
		return err
	}

	h, err := src.MoveTo(req.From, dst, req.To)
	if err != nil {
		return err
	}
	newPath, err := pathOf(dst, h)
	if err != nil {
		return err
	}

	c.relocate(oldPath, newPath)
	c.logger.Info("moved", "from", oldPath, "to", newPath)
	c.emitPaths()
	return nil
}

// RetrieveDictionaryFile sends a Hunspell file to the UI. A missing
// dictionary is reported with a notice.
func (c *Controller) RetrieveDictionaryFile(kind, lang string) error {
	if c.deps.Dictionaries == nil {
		return dictionary.ErrDictionaryNotFound
	}

	content, err := c.deps.Dictionaries.Load(kind, lang)
	if errors.Is(err, dictionary.ErrDictionaryNotFound) {
		c.logger.Warn("dictionary not installed", "kind", kind, "lang", lang)
		c.emit(CmdNotify, Notice{
			Level:   "error",
			Message: fmt.Sprintf("No spellcheck dictionary installed for %s", lang),
		})
		return nil
	}
	if err != nil {
		return err
	}

	cmd := CmdTypoAff
	if kind == dictionary.KindDic {
		cmd = CmdTypoDic
	}
	c.emit(cmd, DictionaryReply{Lang: dictionary.CanonicalLang(lang), Content: content})
	return nil
}

// Refresh rescans every root and reports whether anything changed. The UI
// receives paths-update on change.
func (c *Controller) Refresh() (bool, error) {
	c.mu.RLock()
	roots := append([]*workspace.Tree(nil), c.roots...)
	c.mu.RUnlock()

	var (
		changed bool
		errs    []error
	)
	for _, t := range roots {
		ok, err := t.Rescan()
		if err != nil {
			errs = append(errs, fmt.Errorf("rescan %s: %w", t.Root(), err))
			continue
		}
		changed = changed || ok
	}

	if changed {
		if h, ok := c.CurrentFile(); ok {
			if _, err := c.FindFile(h); err != nil {
				c.CloseFile()
			}
		}
		c.emitPaths()
	}
	return changed, errors.Join(errs...)
}

// addRoot opens path as a new root and reports whether it was added.
func (c *Controller) addRoot(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", path, err)
	}

	c.mu.RLock()
	for _, t := range c.roots {
		if t.Root() == abs {
			c.mu.RUnlock()
			return false, nil
		}
	}
	c.mu.RUnlock()

	t, err := workspace.Open(abs, c.opts)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.roots {
		if existing.Root() == abs {
			return false, nil
		}
	}
	c.roots = append(c.roots, t)
	c.logger.Info("opened workspace root", "path", abs)
	return true, nil
}

func (c *Controller) persistRoots() error {
	if err := c.deps.Prefs.Set(prefs.KeyOpenPaths, c.Roots()); err != nil {
		return fmt.Errorf("save open paths: %w", err)
	}
	return nil
}

// treeOf returns the root containing h.
func (c *Controller) treeOf(h workspace.Hash) (*workspace.Tree, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.roots {
		if t.Contains(h) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", h, workspace.ErrNotFound)
}

// targetDir resolves the directory for new entries: h when set, else the
// current directory, else the first root.
func (c *Controller) targetDir(h workspace.Hash) (*workspace.Tree, workspace.Hash, error) {
	if h == 0 {
		if cur, ok := c.CurrentDir(); ok {
			h = cur
		} else {
			c.mu.RLock()
			if len(c.roots) > 0 {
				h = c.roots[0].RootHash()
			}
			c.mu.RUnlock()
		}
	}
	if h == 0 {
		return nil, 0, ErrNoDirectory
	}

	t, err := c.treeOf(h)
	if err != nil {
		return nil, 0, err
	}
	if _, err := t.FindDir(h); err != nil {
		return nil, 0, err
	}
	return t, h, nil
}

func (c *Controller) rename(t *workspace.Tree, oldPath string, req router.RenameRequest) error {
	h, err := t.Rename(req.Hash, req.Name)
	if err != nil {
		return err
	}
	newPath, err := pathOf(t, h)
	if err != nil {
		return err
	}

	c.relocate(oldPath, newPath)
	c.logger.Info("renamed", "from", oldPath, "to", newPath)
	c.emitPaths()
	return nil
}

// relocate rewrites the current file and directory after oldPath moved to newPath.
func (c *Controller) relocate(oldPath, newPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := rebase(c.curFile, oldPath, newPath); ok {
		c.curFile = p
	}
	if p, ok := rebase(c.curDir, oldPath, newPath); ok {
		c.curDir = p
	}
}

// dropCurrent clears the current file and directory when they are at or below path.
func (c *Controller) dropCurrent(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if within(c.curFile, path) {
		c.curFile = ""
	}
	if within(c.curDir, path) {
		c.curDir = ""
	}
}

// under reports whether path lies inside an open root.
func (c *Controller) under(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.roots {
		if within(path, t.Root()) {
			return true
		}
	}
	return false
}

func (c *Controller) forget(h workspace.Hash, at time.Time) {
	if c.deps.Autosave == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.deps.Autosave.Forget(ctx, h, at); err != nil {
		c.logger.Warn("failed to discard autosave", "hash", h, "error", err)
	}
}

func (c *Controller) emitPaths() {
	c.emit(CmdPathsUpdate, c.Paths())
}

func (c *Controller) emit(command string, content any) {
	c.mu.RLock()
	fn := c.notify
	c.mu.RUnlock()
	if fn != nil {
		fn(command, content)
	}
}

func pathOf(t *workspace.Tree, h workspace.Hash) (string, error) {
	if f, err := t.FindFile(h); err == nil {
		return f.Path, nil
	}
	d, err := t.FindDir(h)
	if err != nil {
		return "", err
	}
	return d.Path, nil
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	if path == "" {
		return false
	}
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}

func rebase(path, oldBase, newBase string) (string, bool) {
	if !within(path, oldBase) {
		return "", false
	}
	return newBase + strings.TrimPrefix(path, oldBase), true
}
