// Package prefs stores the editor's user preferences.
//
// Preferences are a flat map of JSON-compatible values persisted as YAML.
// Missing keys are filled from Defaults when the file is loaded, and
// values written through Set or Update are checked against the type of
// their default before they are accepted. Language settings (appLang and
// spellcheck) are parsed and canonicalised as BCP 47 tags.
//
// The store also exposes a read-only runtime environment (home directory,
// config file, dictionary directory, version, platform) that the UI can
// query by key.
package prefs
