// Package editor implements the application controller behind the router.
//
// The controller owns the open workspace roots, the current file and
// directory, and the collaborators that act on them: preferences, the
// autosave writer, the exporter, and the dictionary loader. Results that
// the UI needs are pushed back through a Notifier as router commands.
package editor
