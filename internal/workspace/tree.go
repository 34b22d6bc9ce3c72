package workspace

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Tree mirrors one root directory.
type Tree struct {
	root string
	opts Options

	mu    sync.RWMutex
	top   *Dir
	files map[Hash]*File
	dirs  map[Hash]*Dir
}

// Open scans root and returns its tree.
func Open(root string, opts Options) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open %s: %w", abs, ErrNotDirectory)
	}

	exts := make([]string, len(opts.Extensions))
	for i, ext := range opts.Extensions {
		exts[i] = strings.ToLower(ext)
	}
	opts.Extensions = exts

	t := &Tree{root: abs, opts: opts}
	if _, err := t.Rescan(); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the absolute root path.
func (t *Tree) Root() string {
	return t.root
}

// RootHash returns the hash of the root directory.
func (t *Tree) RootHash() Hash {
	return HashPath(t.root)
}

// View returns the JSON form of the whole tree.
func (t *Tree) View() Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.top.View()
}

// Contains reports whether h names a file or directory in the tree.
func (t *Tree) Contains(h Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, isFile := t.files[h]
	_, isDir := t.dirs[h]
	return isFile || isDir
}

// FindFile returns the file with hash h.
func (t *Tree) FindFile(h Hash) (*File, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.files[h]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", h, ErrNotFound)
	}
	return f, nil
}

// FindDir returns the directory with hash h.
func (t *Tree) FindDir(h Hash) (*Dir, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.dirs[h]
	if !ok {
		return nil, fmt.Errorf("directory %s: %w", h, ErrNotFound)
	}
	return d, nil
}

// Fingerprint summarises paths, sizes and modification times. It changes
// whenever a rescan would produce a different tree.
func (t *Tree) Fingerprint() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fingerprint(t.files, t.dirs)
}

// Rescan rebuilds the tree from disk and reports whether it changed.
func (t *Tree) Rescan() (bool, error) {
	top, files, dirs, err := t.scan()
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	changed := t.top == nil || fingerprint(t.files, t.dirs) != fingerprint(files, dirs)
	t.top, t.files, t.dirs = top, files, dirs
	return changed, nil
}

// scan walks the root directory.
func (t *Tree) scan() (*Dir, map[Hash]*File, map[Hash]*Dir, error) {
	top := &Dir{
		Hash: HashPath(t.root),
		Name: filepath.Base(t.root),
		Path: t.root,
	}
	files := make(map[Hash]*File)
	dirs := map[Hash]*Dir{top.Hash: top}

	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == t.root {
				return err
			}
			// Unreadable entries are left out of the tree
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == t.root {
			return nil
		}

		name := d.Name()
		if !t.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		parent, ok := dirs[HashPath(filepath.Dir(path))]
		if !ok {
			return nil
		}

		if d.IsDir() {
			dir := &Dir{
				Hash:       HashPath(path),
				Name:       name,
				Path:       path,
				ParentHash: parent.Hash,
			}
			parent.Dirs = append(parent.Dirs, dir)
			dirs[dir.Hash] = dir
			return nil
		}

		if !d.Type().IsRegular() || !t.accepts(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		f := &File{
			Hash:    HashPath(path),
			Name:    name,
			Path:    path,
			DirHash: parent.Hash,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		parent.Files = append(parent.Files, f)
		files[f.Hash] = f
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scan %s: %w", t.root, err)
	}

	return top, files, dirs, nil
}

// accepts reports whether a file name has one of the configured extensions.
func (t *Tree) accepts(name string) bool {
	if len(t.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range t.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func fingerprint(files map[Hash]*File, dirs map[Hash]*Dir) uint64 {
	keys := make([]string, 0, len(files)+len(dirs))
	byPath := make(map[string]*File, len(files))
	for _, f := range files {
		keys = append(keys, f.Path)
		byPath[f.Path] = f
	}
	for _, d := range dirs {
		keys = append(keys, d.Path+string(filepath.Separator))
	}
	sort.Strings(keys)

	digest := xxhash.New()
	var buf [16]byte
	for _, k := range keys {
		digest.WriteString(k)
		if f, ok := byPath[k]; ok {
			binary.LittleEndian.PutUint64(buf[:8], uint64(f.Size))
			binary.LittleEndian.PutUint64(buf[8:], uint64(f.ModTime.UnixNano()))
			digest.Write(buf[:])
		}
	}
	return digest.Sum64()
}
