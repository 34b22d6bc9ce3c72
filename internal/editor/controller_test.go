package editor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/inkwell/internal/config"
	"github.com/rickgao/inkwell/internal/database"
	"github.com/rickgao/inkwell/internal/dictionary"
	"github.com/rickgao/inkwell/internal/export"
	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/search"
	"github.com/rickgao/inkwell/internal/workspace"
	"github.com/rickgao/inkwell/internal/writer"
)

type event struct {
	cmd     string
	content any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) notify(cmd string, content any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{cmd, content})
}

func (r *recorder) last(cmd string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].cmd == cmd {
			return r.events[i].content, true
		}
	}
	return nil, false
}

func (r *recorder) count(cmd string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.cmd == cmd {
			n++
		}
	}
	return n
}

type fixture struct {
	ctrl  *Controller
	prefs *prefs.Store
	queue *router.GrowableBuffer[writer.Snapshot]
	rec   *recorder
	root  string
	dicts string
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "notes")
	mustWrite(t, filepath.Join(root, "a.md"), "# Alpha\nhello world\n")
	mustWrite(t, filepath.Join(root, "sub", "b.md"), "bravo")

	dicts := filepath.Join(base, "dicts")
	mustWrite(t, filepath.Join(dicts, "en-US", "en-US.aff"), "SET UTF-8")
	mustWrite(t, filepath.Join(dicts, "en-US", "en-US.dic"), "1\nhello")

	store, err := prefs.Open("", nil, nil)
	require.NoError(t, err)

	db, err := database.Open(context.Background(), config.StorageConfig{
		Path: filepath.Join(base, "autosave.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	queue := router.NewGrowableBuffer[writer.Snapshot](8, 0)
	w := writer.NewAutosaveWriter(writer.DefaultConfig(), queue, database.NewAutosaveStore(db), nil)

	ctrl, err := New(workspace.DefaultOptions(), Deps{
		Prefs:        store,
		Autosave:     w,
		Queue:        queue,
		Exporter:     export.New(nil),
		Dictionaries: dictionary.NewLoader(dicts, nil),
	}, nil)
	require.NoError(t, err)

	rec := &recorder{}
	ctrl.SetNotifier(rec.notify)
	ctrl.Restore(root)

	return &fixture{ctrl: ctrl, prefs: store, queue: queue, rec: rec, root: root, dicts: dicts}
}

func (f *fixture) hash(rel ...string) workspace.Hash {
	return workspace.HashPath(filepath.Join(append([]string{f.root}, rel...)...))
}

func TestNew_RequiresPrefs(t *testing.T) {
	_, err := New(workspace.DefaultOptions(), Deps{}, nil)
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)

	other := t.TempDir()
	f.ctrl.Restore(f.root, other, filepath.Join(other, "missing"))

	assert.Equal(t, []string{f.root, other}, f.ctrl.Roots())
	assert.Equal(t, []string{f.root, other}, f.prefs.GetStrings(prefs.KeyOpenPaths))
	assert.Len(t, f.ctrl.Paths(), 2)
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	h := f.hash("a.md")

	require.NoError(t, f.ctrl.OpenFile(h))

	got, ok := f.rec.last(CmdFileOpen)
	require.True(t, ok)
	opened := got.(OpenedFile)
	assert.Equal(t, "# Alpha\nhello world\n", opened.Content)
	assert.Equal(t, "a.md", opened.Name)
	assert.False(t, opened.Autosaved)

	cur, ok := f.ctrl.CurrentFile()
	assert.True(t, ok)
	assert.Equal(t, h, cur)
	dir, ok := f.ctrl.CurrentDir()
	assert.True(t, ok)
	assert.Equal(t, workspace.HashPath(f.root), dir)

	assert.ErrorIs(t, f.ctrl.OpenFile(12345), workspace.ErrNotFound)
}

func TestOpenFile_PrefersNewerAutosave(t *testing.T) {
	f := newFixture(t)
	h := f.hash("a.md")

	require.NoError(t, f.ctrl.AutosaveFile(router.SaveRequest{Hash: h, Content: "draft"}))
	assert.Equal(t, 1, f.queue.Len())

	require.NoError(t, f.ctrl.OpenFile(h))
	got, _ := f.rec.last(CmdFileOpen)
	opened := got.(OpenedFile)
	assert.True(t, opened.Autosaved)
	assert.Equal(t, "draft", opened.Content)
}

func TestAutosaveFile_Disabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.prefs.Set(prefs.KeyAutosave, false))

	require.NoError(t, f.ctrl.AutosaveFile(router.SaveRequest{Hash: f.hash("a.md"), Content: "x"}))
	assert.Equal(t, 0, f.queue.Len())
}

func TestSaveFile_DiscardsAutosave(t *testing.T) {
	f := newFixture(t)
	h := f.hash("a.md")

	require.NoError(t, f.ctrl.AutosaveFile(router.SaveRequest{Hash: h, Content: "draft"}))
	require.NoError(t, f.ctrl.SaveFile(router.SaveRequest{Hash: h, Content: "final"}))

	got, ok := f.rec.last(CmdFileSaved)
	require.True(t, ok)
	assert.Equal(t, HashReply{Hash: h}, got)

	data, err := os.ReadFile(filepath.Join(f.root, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "final", string(data))

	require.NoError(t, f.ctrl.OpenFile(h))
	opened, _ := f.rec.last(CmdFileOpen)
	assert.False(t, opened.(OpenedFile).Autosaved)
	assert.Equal(t, "final", opened.(OpenedFile).Content)
}

func TestRevertFile(t *testing.T) {
	f := newFixture(t)
	h := f.hash("a.md")

	assert.ErrorIs(t, f.ctrl.RevertFile(), ErrNoCurrentFile)

	require.NoError(t, f.ctrl.OpenFile(h))
	require.NoError(t, f.ctrl.AutosaveFile(router.SaveRequest{Hash: h, Content: "draft"}))
	require.NoError(t, f.ctrl.RevertFile())

	got, _ := f.rec.last(CmdFileOpen)
	opened := got.(OpenedFile)
	assert.False(t, opened.Autosaved)
	assert.Equal(t, "# Alpha\nhello world\n", opened.Content)
}

func TestCloseFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.OpenFile(f.hash("a.md")))
	require.NoError(t, f.ctrl.CloseFile())

	_, ok := f.ctrl.CurrentFile()
	assert.False(t, ok)
}

func TestNewFile_NumberedNames(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.ctrl.NewFile(router.NewFileRequest{Hash: workspace.HashPath(f.root)}))
	}
	for _, name := range []string{"Untitled.md", "Untitled-1.md", "Untitled-2.md"} {
		assert.FileExists(t, filepath.Join(f.root, name))
	}

	cur, ok := f.ctrl.CurrentFile()
	assert.True(t, ok)
	assert.Equal(t, f.hash("Untitled-2.md"), cur)
	assert.Equal(t, 3, f.rec.count(CmdPathsUpdate))

	require.NoError(t, f.ctrl.NewFile(router.NewFileRequest{Name: "a.md"}))
	assert.FileExists(t, filepath.Join(f.root, "a-1.md"))
}

func TestNewFile_NoDirectory(t *testing.T) {
	store, err := prefs.Open("", nil, nil)
	require.NoError(t, err)
	ctrl, err := New(workspace.DefaultOptions(), Deps{Prefs: store}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, ctrl.NewFile(router.NewFileRequest{}), ErrNoDirectory)
}

func TestSelectDir_NewEntries(t *testing.T) {
	f := newFixture(t)
	sub := f.hash("sub")

	require.NoError(t, f.ctrl.SelectDir(sub))
	got, ok := f.rec.last(CmdDirSetCurrent)
	require.True(t, ok)
	assert.Equal(t, HashReply{Hash: sub}, got)

	require.NoError(t, f.ctrl.NewFile(router.NewFileRequest{Name: "draft"}))
	assert.FileExists(t, filepath.Join(f.root, "sub", "draft.md"))

	require.NoError(t, f.ctrl.NewDir(router.NewDirRequest{Name: "inner"}))
	assert.DirExists(t, filepath.Join(f.root, "sub", "inner"))

	assert.ErrorIs(t, f.ctrl.NewDir(router.NewDirRequest{Name: ""}), workspace.ErrInvalidName)
	assert.ErrorIs(t, f.ctrl.SelectDir(f.hash("a.md")), workspace.ErrNotFound)
}

func TestOpenDir(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ctrl.OpenDir(router.OpenDirRequest{Path: " "}), ErrMissingPath)

	before := f.rec.count(CmdPathsUpdate)
	require.NoError(t, f.ctrl.OpenDir(router.OpenDirRequest{Path: f.root}))
	assert.Equal(t, before, f.rec.count(CmdPathsUpdate), "duplicate root must not notify")

	other := t.TempDir()
	require.NoError(t, f.ctrl.OpenDir(router.OpenDirRequest{Path: other}))
	assert.Equal(t, before+1, f.rec.count(CmdPathsUpdate))
	assert.Equal(t, []string{f.root, other}, f.prefs.GetStrings(prefs.KeyOpenPaths))

	assert.Error(t, f.ctrl.OpenDir(router.OpenDirRequest{Path: filepath.Join(other, "nope")}))
}

func TestRemoveFile(t *testing.T) {
	f := newFixture(t)
	h := f.hash("a.md")
	require.NoError(t, f.ctrl.OpenFile(h))

	require.NoError(t, f.ctrl.RemoveFile(h))

	assert.NoFileExists(t, filepath.Join(f.root, "a.md"))
	_, ok := f.ctrl.CurrentFile()
	assert.False(t, ok)
	assert.ErrorIs(t, f.ctrl.RemoveFile(f.hash("sub")), workspace.ErrNotFound)
}

func TestRemoveDir(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.OpenFile(f.hash("sub", "b.md")))

	require.NoError(t, f.ctrl.RemoveDir(f.hash("sub")))
	assert.NoDirExists(t, filepath.Join(f.root, "sub"))
	_, ok := f.ctrl.CurrentFile()
	assert.False(t, ok)
	_, ok = f.ctrl.CurrentDir()
	assert.False(t, ok)
}

func TestRemoveDir_RootClosesWorkspace(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.RemoveDir(workspace.HashPath(f.root)))

	assert.DirExists(t, f.root)
	assert.Empty(t, f.ctrl.Roots())
	assert.Empty(t, f.prefs.GetStrings(prefs.KeyOpenPaths))
}

func TestRenameFile_KeepsCurrent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.OpenFile(f.hash("a.md")))

	require.NoError(t, f.ctrl.RenameFile(router.RenameRequest{Hash: f.hash("a.md"), Name: "alpha"}))

	assert.FileExists(t, filepath.Join(f.root, "alpha.md"))
	cur, _ := f.ctrl.CurrentFile()
	assert.Equal(t, f.hash("alpha.md"), cur)

	assert.ErrorIs(t, f.ctrl.RenameFile(router.RenameRequest{Hash: f.hash("sub"), Name: "x"}), workspace.ErrNotFound)
}

func TestRenameDir_RelocatesCurrent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.OpenFile(f.hash("sub", "b.md")))

	require.NoError(t, f.ctrl.RenameDir(router.RenameRequest{Hash: f.hash("sub"), Name: "chapters"}))

	cur, _ := f.ctrl.CurrentFile()
	assert.Equal(t, f.hash("chapters", "b.md"), cur)
	dir, _ := f.ctrl.CurrentDir()
	assert.Equal(t, f.hash("chapters"), dir)
}

func TestMove_AcrossRoots(t *testing.T) {
	f := newFixture(t)
	other := t.TempDir()
	require.NoError(t, f.ctrl.OpenDir(router.OpenDirRequest{Path: other}))
	require.NoError(t, f.ctrl.OpenFile(f.hash("a.md")))

	require.NoError(t, f.ctrl.Move(router.MoveRequest{From: f.hash("a.md"), To: workspace.HashPath(other)}))

	assert.FileExists(t, filepath.Join(other, "a.md"))
	cur, _ := f.ctrl.CurrentFile()
	assert.Equal(t, workspace.HashPath(filepath.Join(other, "a.md")), cur)

	err := f.ctrl.Move(router.MoveRequest{From: f.hash("sub"), To: f.hash("sub")})
	assert.ErrorIs(t, err, workspace.ErrInvalidMove)
}

func TestSearchFile(t *testing.T) {
	f := newFixture(t)

	res, err := f.ctrl.SearchFile(f.hash("a.md"), []search.Term{{Word: "HELLO"}})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].Line)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	out := t.TempDir()
	require.NoError(t, f.prefs.Set(prefs.KeyExportDir, out))

	require.NoError(t, f.ctrl.Export(router.ExportRequest{Hash: f.hash("a.md"), Ext: "txt"}))
	assert.FileExists(t, filepath.Join(out, "a.txt"))

	got, ok := f.rec.last(CmdNotify)
	require.True(t, ok)
	assert.Equal(t, "info", got.(Notice).Level)

	err := f.ctrl.Export(router.ExportRequest{Hash: f.hash("a.md"), Ext: "pdf"})
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
	got, _ = f.rec.last(CmdNotify)
	assert.Equal(t, "error", got.(Notice).Level)
}

func TestExport_BesideFile(t *testing.T) {
	f := newFixture(t)
	before := f.rec.count(CmdPathsUpdate)

	require.NoError(t, f.ctrl.Export(router.ExportRequest{Hash: f.hash("a.md"), Ext: "md"}))

	assert.FileExists(t, filepath.Join(f.root, "a-export.md"))
	assert.Equal(t, before+1, f.rec.count(CmdPathsUpdate))
}

func TestRetrieveDictionaryFile(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.RetrieveDictionaryFile(dictionary.KindDic, "en_US"))
	got, ok := f.rec.last(CmdTypoDic)
	require.True(t, ok)
	assert.Equal(t, DictionaryReply{Lang: "en-US", Content: "1\nhello"}, got)

	require.NoError(t, f.ctrl.RetrieveDictionaryFile(dictionary.KindAff, "en-US"))
	_, ok = f.rec.last(CmdTypoAff)
	assert.True(t, ok)

	require.NoError(t, f.ctrl.RetrieveDictionaryFile(dictionary.KindAff, "fr"))
	notice, ok := f.rec.last(CmdNotify)
	require.True(t, ok)
	assert.Equal(t, "error", notice.(Notice).Level)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.OpenFile(f.hash("a.md")))

	changed, err := f.ctrl.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)

	before := f.rec.count(CmdPathsUpdate)
	mustWrite(t, filepath.Join(f.root, "c.md"), "external")
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.md")))

	changed, err = f.ctrl.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, before+1, f.rec.count(CmdPathsUpdate))

	_, ok := f.ctrl.CurrentFile()
	assert.False(t, ok, "deleted file must no longer be current")
}
