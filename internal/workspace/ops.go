package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is appended to new file names without an accepted extension.
const DefaultExtension = ".md"

// ValidateName rejects names that are empty or would escape their directory.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	if strings.ContainsAny(trimmed, `/\`) || strings.ContainsRune(trimmed, 0) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// ReadFile returns the content of a file.
func (t *Tree) ReadFile(h Hash) (string, error) {
	f, err := t.FindFile(h)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// WriteFile replaces the content of a file.
func (t *Tree) WriteFile(h Hash, content string) error {
	f, err := t.FindFile(h)
	if err != nil {
		return err
	}
	if err := writeAtomic(f.Path, []byte(content)); err != nil {
		return err
	}
	_, err = t.Rescan()
	return err
}

// CreateFile creates an empty file in directory dir and returns its hash.
func (t *Tree) CreateFile(dir Hash, name string) (Hash, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	d, err := t.FindDir(dir)
	if err != nil {
		return 0, err
	}

	name = strings.TrimSpace(name)
	if !t.accepts(name) {
		name += DefaultExtension
	}
	path := filepath.Join(d.Path, name)

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}

	if _, err := t.Rescan(); err != nil {
		return 0, err
	}
	return HashPath(path), nil
}

// CreateDir creates a directory below parent and returns its hash.
func (t *Tree) CreateDir(parent Hash, name string) (Hash, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	d, err := t.FindDir(parent)
	if err != nil {
		return 0, err
	}

	path := filepath.Join(d.Path, strings.TrimSpace(name))
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return 0, fmt.Errorf("mkdir %s: %w", path, err)
	}

	if _, err := t.Rescan(); err != nil {
		return 0, err
	}
	return HashPath(path), nil
}

// Rename renames a file or directory and returns its new hash.
// A file keeps its extension when the new name has none.
func (t *Tree) Rename(h Hash, name string) (Hash, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)

	var oldPath string
	if f, err := t.FindFile(h); err == nil {
		oldPath = f.Path
		if !t.accepts(name) {
			name += filepath.Ext(f.Name)
		}
	} else if d, err := t.FindDir(h); err == nil {
		if d.Hash == t.RootHash() {
			return 0, ErrRootOperation
		}
		oldPath = d.Path
	} else {
		return 0, fmt.Errorf("rename %s: %w", h, ErrNotFound)
	}

	newPath := filepath.Join(filepath.Dir(oldPath), name)
	if newPath == oldPath {
		return h, nil
	}
	if err := renameNoReplace(oldPath, newPath); err != nil {
		return 0, err
	}

	if _, err := t.Rescan(); err != nil {
		return 0, err
	}
	return HashPath(newPath), nil
}

// MoveTo moves a file or directory of t into directory target of dst and
// returns its new hash. dst may be t itself.
func (t *Tree) MoveTo(h Hash, dst *Tree, target Hash) (Hash, error) {
	dir, err := dst.FindDir(target)
	if err != nil {
		return 0, err
	}

	var oldPath string
	if f, err := t.FindFile(h); err == nil {
		oldPath = f.Path
	} else if d, err := t.FindDir(h); err == nil {
		if d.Hash == t.RootHash() {
			return 0, ErrRootOperation
		}
		oldPath = d.Path
		if dir.Path == d.Path || strings.HasPrefix(dir.Path, d.Path+string(filepath.Separator)) {
			return 0, ErrInvalidMove
		}
	} else {
		return 0, fmt.Errorf("move %s: %w", h, ErrNotFound)
	}

	newPath := filepath.Join(dir.Path, filepath.Base(oldPath))
	if newPath == oldPath {
		return h, nil
	}
	if err := renameNoReplace(oldPath, newPath); err != nil {
		return 0, err
	}

	if _, err := t.Rescan(); err != nil {
		return 0, err
	}
	if dst != t {
		if _, err := dst.Rescan(); err != nil {
			return 0, err
		}
	}
	return HashPath(newPath), nil
}

// Remove deletes a file, or a directory with everything below it.
func (t *Tree) Remove(h Hash) error {
	var path string
	if f, err := t.FindFile(h); err == nil {
		path = f.Path
	} else if d, err := t.FindDir(h); err == nil {
		if d.Hash == t.RootHash() {
			return ErrRootOperation
		}
		path = d.Path
	} else {
		return fmt.Errorf("remove %s: %w", h, ErrNotFound)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	_, err := t.Rescan()
	return err
}

// renameNoReplace renames oldPath to newPath unless newPath exists.
func renameNoReplace(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return fmt.Errorf("%s: %w", newPath, ErrExists)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".inkwell-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if info, err := os.Stat(path); err == nil {
		if err := tmp.Chmod(info.Mode().Perm()); err != nil {
			tmp.Close()
			return fmt.Errorf("chmod temp file: %w", err)
		}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
