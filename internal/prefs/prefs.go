package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Well-known preference keys.
const (
	KeyDarkTheme      = "darkTheme"
	KeySnippets       = "snippets"
	KeySpellcheck     = "spellcheck"
	KeyAppLang        = "appLang"
	KeyAutosave       = "autosave"
	KeyExportDir      = "exportDir"
	KeyOpenPaths      = "openPaths"
	KeyEditorFontSize = "editorFontSize"
)

// Errors
var (
	ErrUnknownKey   = errors.New("unknown preference")
	ErrInvalidValue = errors.New("invalid preference value")
)

// Defaults returns a fresh copy of the default preferences.
func Defaults() map[string]any {
	return map[string]any{
		KeyDarkTheme:      false,
		KeySnippets:       true,
		KeySpellcheck:     []any{"en-US"},
		KeyAppLang:        "en-US",
		KeyAutosave:       true,
		KeyExportDir:      "",
		KeyOpenPaths:      []any{},
		KeyEditorFontSize: 16,
	}
}

// Store holds preferences in memory and persists them to a YAML file.
// A Store with an empty path is never written to disk.
type Store struct {
	path   string
	env    map[string]string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]any
}

// Open loads preferences from path. A missing file yields the defaults.
// env is the runtime environment returned by Env.
func Open(path string, env map[string]string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		env:    make(map[string]string, len(env)),
		logger: logger,
		values: Defaults(),
	}
	for k, v := range env {
		s.env[k] = v
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("preferences file not found, using defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var stored map[string]any
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}

	for key, value := range stored {
		value = normalize(value)
		if err := s.check(key, value); err != nil {
			logger.Warn("ignoring stored preference", "key", key, "error", err)
			continue
		}
		s.values[key] = s.canonical(key, value)
	}

	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// GetBool returns the boolean under key, or false.
func (s *Store) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetString returns the string under key, or "".
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetStrings returns the string list under key. Non-string entries are skipped.
func (s *Store) GetStrings(key string) []string {
	v, _ := s.Get(key)
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Snapshot returns a deep copy of all preferences.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.values).(map[string]any)
}

// Set stores a single value and saves.
func (s *Store) Set(key string, value any) error {
	return s.Update(map[string]any{key: value})
}

// Toggle flips a boolean preference, saves, and returns the new value.
func (s *Store) Toggle(key string) (bool, error) {
	s.mu.Lock()
	current, ok := s.values[key].(bool)
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("toggle %s: %w", key, ErrInvalidValue)
	}
	s.values[key] = !current
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return !current, err
	}
	return !current, nil
}

// Validate reports the first invalid entry of values without applying
// anything.
func (s *Store) Validate(values map[string]any) error {
	_, err := s.prepare(values)
	return err
}

// Update validates every entry of values and applies them together.
// Nothing is applied when any entry is invalid.
func (s *Store) Update(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	normalized, err := s.prepare(values)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for key, value := range normalized {
		s.values[key] = value
	}
	s.mu.Unlock()

	return s.Save()
}

// prepare checks values and returns them in stored form.
func (s *Store) prepare(values map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(values))
	for key, value := range values {
		value = normalize(value)
		if err := s.check(key, value); err != nil {
			return nil, err
		}
		normalized[key] = s.canonical(key, value)
	}
	return normalized, nil
}

// Env returns a runtime environment value. Keys not in the runtime
// environment are looked up in the process environment.
func (s *Store) Env(key string) (string, bool) {
	if v, ok := s.env[key]; ok {
		return v, true
	}
	return os.LookupEnv(key)
}

// Save writes the preferences to disk.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	data, err := yaml.Marshal(s.values)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	s.logger.Debug("preferences saved", "path", s.path)
	return nil
}

// check validates value against the type of the default for key.
// Keys without a default accept any value.
func (s *Store) check(key string, value any) error {
	if key == "" {
		return fmt.Errorf("empty key: %w", ErrUnknownKey)
	}

	switch key {
	case KeyAppLang:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string: %w", key, ErrInvalidValue)
		}
		if _, err := MatchLanguage(str); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	case KeySpellcheck:
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s must be a list: %w", key, ErrInvalidValue)
		}
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("%s entries must be strings: %w", key, ErrInvalidValue)
			}
			if _, err := CanonicalTag(str); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	}

	def, ok := Defaults()[key]
	if !ok {
		return nil
	}
	if !sameKind(def, value) {
		return fmt.Errorf("%s has type %T, want %T: %w", key, value, def, ErrInvalidValue)
	}
	return nil
}

// canonical rewrites language values into their canonical form.
// value must already have passed check.
func (s *Store) canonical(key string, value any) any {
	switch key {
	case KeyAppLang:
		tag, _ := MatchLanguage(value.(string))
		return tag
	case KeySpellcheck:
		list := value.([]any)
		out := make([]any, 0, len(list))
		seen := make(map[string]bool, len(list))
		for _, item := range list {
			tag, _ := CanonicalTag(item.(string))
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
		return out
	}
	return value
}

func sameKind(def, value any) bool {
	switch def.(type) {
	case bool:
		_, ok := value.(bool)
		return ok
	case string:
		_, ok := value.(string)
		return ok
	case int, float64:
		switch value.(type) {
		case int, float64:
			return true
		}
		return false
	case []any:
		_, ok := value.([]any)
		return ok
	case map[string]any:
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

// normalize converts decoded JSON or YAML values into the small set of
// types the store keeps: bool, string, int, float64, []any, map[string]any.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case int64:
		return int(val)
	case int32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return float64(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	}
	return v
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	}
	return v
}
