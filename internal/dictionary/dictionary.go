// Package dictionary loads Hunspell affix and word-list files.
//
// Dictionaries are laid out as <dir>/<lang>/<lang>.<kind>, where kind is
// "aff" or "dic". Both the hyphenated (en-US) and underscored (en_US)
// spellings of a language are accepted on disk.
package dictionary

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

var (
	// ErrDictionaryNotFound is returned when no file exists for a language.
	ErrDictionaryNotFound = errors.New("dictionary not found")

	// ErrInvalidKind is returned for kinds other than aff and dic.
	ErrInvalidKind = errors.New("invalid dictionary kind")
)

// Dictionary file kinds.
const (
	KindAff = "aff"
	KindDic = "dic"
)

// Loader reads dictionary files and caches their content.
type Loader struct {
	dir    string
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Dir returns the dictionary root.
func (l *Loader) Dir() string {
	return l.dir
}

// CanonicalLang normalises a language code to its BCP 47 form (en_us -> en-US).
// Codes that do not parse are returned with underscores replaced.
func CanonicalLang(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// Load returns the content of the kind file for lang.
func (l *Loader) Load(kind, lang string) (string, error) {
	if kind != KindAff && kind != KindDic {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	lang = CanonicalLang(lang)
	if lang == "" {
		return "", fmt.Errorf("%w: empty language", ErrDictionaryNotFound)
	}
	key := lang + "." + kind

	l.mu.RLock()
	content, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return content, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		content, err := l.read(kind, lang)
		if err != nil {
			return "", err
		}
		l.mu.Lock()
		l.cache[key] = content
		l.mu.Unlock()
		l.logger.Debug("loaded dictionary", "lang", lang, "kind", kind, "bytes", len(content))
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Languages lists the installed languages that have both files, canonicalised and sorted.
func (l *Loader) Languages() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dictionary dir: %w", err)
	}

	seen := make(map[string]bool)
	langs := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !exists(filepath.Join(l.dir, name, name+"."+KindAff)) ||
			!exists(filepath.Join(l.dir, name, name+"."+KindDic)) {
			continue
		}
		lang := CanonicalLang(name)
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs, nil
}

// Purge drops cached content.
func (l *Loader) Purge() {
	l.mu.Lock()
	l.cache = make(map[string]string)
	l.mu.Unlock()
}

func (l *Loader) read(kind, lang string) (string, error) {
	for _, name := range candidates(lang) {
		data, err := os.ReadFile(filepath.Join(l.dir, name, name+"."+kind))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read %s dictionary %s: %w", kind, name, err)
		}
	}
	return "", fmt.Errorf("%w: %s.%s", ErrDictionaryNotFound, lang, kind)
}

// candidates returns the on-disk spellings to try for lang.
func candidates(lang string) []string {
	out := []string{lang}
	if u := strings.ReplaceAll(lang, "-", "_"); u != lang {
		out = append(out, u)
	}
	return out
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
