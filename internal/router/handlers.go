package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/workspace"
)

// errMissingHash is returned when a command needs a hash the content lacks.
var errMissingHash = errors.New("content has no hash")

// errInvalidHash is returned when content carries a hash that is neither a
// number nor a decimal string.
var errInvalidHash = errors.New("invalid hash")

// commandTable maps every known command to its handler.
func commandTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"get-paths":          handleGetPaths,
		"file-get-quicklook": handleQuicklook,
		"file-get":           handleFileGet,
		"dir-select":         handleDirSelect,
		"file-new":           handleFileNew,
		"dir-new":            handleDirNew,
		"file-save":          handleFileSave,
		"file-autosave":      handleFileAutosave,
		"dir-open":           handleDirOpen,
		"file-revert":        handleFileRevert,
		"file-close":         handleFileClose,
		"file-delete":        handleFileDelete,
		"dir-delete":         handleDirDelete,
		"file-search":        handleFileSearch,
		"toggle-theme":       toggle(prefs.KeyDarkTheme),
		"toggle-snippets":    toggle(prefs.KeySnippets),
		"export":             handleExport,
		"file-rename":        handleFileRename,
		"dir-rename":         handleDirRename,
		"request-move":       handleRequestMove,
		"get-preferences":    handleGetPreferences,
		"update-config":      handleUpdateConfig,
		"config-get":         handleConfigGet,
		"config-get-env":     handleConfigGetEnv,
		"typo-request-lang":  handleTypoLang,
		"typo-request-aff":   dictionary("aff"),
		"typo-request-dic":   dictionary("dic"),
	}
}

// toggleCommands pairs update-config keys with the command that flips them.
var toggleCommands = []struct {
	key     string
	command string
}{
	{prefs.KeyDarkTheme, "toggle-theme"},
	{prefs.KeySnippets, "toggle-snippets"},
}

func handleGetPaths(r *Router, _ any) error {
	r.Send("paths", r.ctrl.Paths())
	return nil
}

func handleQuicklook(r *Router, content any) error {
	h, err := requireHash(content)
	if err != nil {
		return err
	}
	if _, err := r.ctrl.FindFile(h); err != nil {
		return err
	}
	view, err := r.ctrl.FileWithContent(h)
	if err != nil {
		return err
	}
	r.Send("file-quicklook", view)
	return nil
}

func handleFileGet(r *Router, content any) error {
	h, err := requireHash(content)
	if err != nil {
		return err
	}
	return r.ctrl.OpenFile(h)
}

func handleDirSelect(r *Router, content any) error {
	h, err := requireHash(content)
	if err != nil {
		return err
	}
	return r.ctrl.SelectDir(h)
}

func handleFileNew(r *Router, content any) error {
	var req NewFileRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.NewFile(req)
}

func handleDirNew(r *Router, content any) error {
	var req NewDirRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.NewDir(req)
}

func handleFileSave(r *Router, content any) error {
	var req SaveRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.SaveFile(req)
}

func handleFileAutosave(r *Router, content any) error {
	var req SaveRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.AutosaveFile(req)
}

func handleDirOpen(r *Router, content any) error {
	req := OpenDirRequest{Path: stringField(content, "path")}
	return r.ctrl.OpenDir(req)
}

func handleFileRevert(r *Router, _ any) error {
	return r.ctrl.RevertFile()
}

func handleFileClose(r *Router, _ any) error {
	return r.ctrl.CloseFile()
}

func handleFileDelete(r *Router, content any) error {
	h, ok, err := hashOf(content)
	if err != nil {
		return err
	}
	if !ok {
		if h, ok = r.ctrl.CurrentFile(); !ok {
			return nil
		}
	}
	return r.ctrl.RemoveFile(h)
}

func handleDirDelete(r *Router, content any) error {
	h, ok, err := hashOf(content)
	if err != nil {
		return err
	}
	if !ok {
		if h, ok = r.ctrl.CurrentDir(); !ok {
			return nil
		}
	}
	return r.ctrl.RemoveDir(h)
}

func handleFileSearch(r *Router, content any) error {
	var req searchRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	if _, err := r.ctrl.FindFile(req.Hash); err != nil {
		return err
	}
	result, err := r.ctrl.SearchFile(req.Hash, req.Terms)
	if err != nil {
		return err
	}
	r.Send("file-search-result", SearchReply{Hash: req.Hash, Result: result})
	return nil
}

// toggle flips a boolean preference. The UI already applied the change,
// so nothing is sent back. A toggle carrying NoEmit echoes one that
// update-config already stored and leaves the preference alone.
func toggle(key string) handlerFunc {
	return func(r *Router, content any) error {
		if content == NoEmit {
			r.logger.Debug("toggle already applied", "key", key)
			return nil
		}
		_, err := r.prefs.Toggle(key)
		return err
	}
}

func handleExport(r *Router, content any) error {
	var req ExportRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.Export(req)
}

func handleFileRename(r *Router, content any) error {
	var req RenameRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.RenameFile(req)
}

func handleDirRename(r *Router, content any) error {
	var req RenameRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.RenameDir(req)
}

func handleRequestMove(r *Router, content any) error {
	var req MoveRequest
	if err := decode(content, &req); err != nil {
		return err
	}
	return r.ctrl.Move(req)
}

func handleGetPreferences(r *Router, _ any) error {
	snapshot := r.prefs.Snapshot()
	snapshot["supportedLangs"] = r.prefs.SupportedLanguages()
	r.Send("preferences", snapshot)
	return nil
}

// handleUpdateConfig validates the update, tells the UI to apply changed
// toggles locally, then stores the whole update. Nothing is sent when the
// update is invalid.
func handleUpdateConfig(r *Router, content any) error {
	values, ok := content.(map[string]any)
	if !ok {
		return fmt.Errorf("update-config content must be an object, got %T", content)
	}
	if err := r.prefs.Validate(values); err != nil {
		return err
	}

	for _, t := range toggleCommands {
		next, ok := values[t.key].(bool)
		if !ok {
			continue
		}
		current, _ := r.prefs.Get(t.key)
		if currentBool, _ := current.(bool); next != currentBool {
			r.Send(t.command, NoEmit)
		}
	}

	return r.prefs.Update(values)
}

func handleConfigGet(r *Router, content any) error {
	key := stringField(content, "key")
	if key == "" {
		return errors.New("config-get needs a key")
	}
	value, _ := r.prefs.Get(key)
	r.Send("config", KeyValue{Key: key, Value: value})
	return nil
}

func handleConfigGetEnv(r *Router, content any) error {
	key := stringField(content, "key")
	if key == "" {
		return errors.New("config-get-env needs a key")
	}
	var value any
	if v, ok := r.prefs.Env(key); ok {
		value = v
	}
	r.Send("config-env", KeyValue{Key: key, Value: value})
	return nil
}

func handleTypoLang(r *Router, _ any) error {
	langs, _ := r.prefs.Get(prefs.KeySpellcheck)
	if langs == nil {
		langs = []any{}
	}
	r.Send("typo-lang", langs)
	return nil
}

// dictionary requests a Hunspell file. Without a language the first
// configured spellcheck language is used.
func dictionary(kind string) handlerFunc {
	return func(r *Router, content any) error {
		lang := stringField(content, "lang")
		if lang == "" {
			if list, ok := r.prefs.Get(prefs.KeySpellcheck); ok {
				if langs, ok := list.([]any); ok && len(langs) > 0 {
					lang, _ = langs[0].(string)
				}
			}
		}
		if lang == "" {
			return fmt.Errorf("typo-request-%s needs a language", kind)
		}
		return r.ctrl.RetrieveDictionaryFile(kind, lang)
	}
}

// decode converts message content into a request struct.
func decode(content any, v any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	return nil
}

// hashOf extracts a hash from content, which is either an object with a
// hash field or the hash itself. ok is false only when the hash is absent
// or null; a hash of any other shape is an error.
func hashOf(content any) (h workspace.Hash, ok bool, err error) {
	raw := content
	if m, isMap := content.(map[string]any); isMap {
		raw = m["hash"]
	}
	if raw == nil {
		return 0, false, nil
	}

	switch raw.(type) {
	case json.Number, string, float64, int, int64, uint64:
	default:
		return 0, false, fmt.Errorf("%w: %T", errInvalidHash, raw)
	}

	if err := decode(raw, &h); err != nil {
		return 0, false, fmt.Errorf("%w: %v", errInvalidHash, err)
	}
	return h, true, nil
}

func requireHash(content any) (workspace.Hash, error) {
	h, ok, err := hashOf(content)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errMissingHash
	}
	return h, nil
}

// stringField returns content itself when it is a string, otherwise the
// named string field of an object.
func stringField(content any, field string) string {
	switch v := content.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v[field].(string)
		return s
	}
	return ""
}
