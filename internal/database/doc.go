// Package database provides the local SQLite store.
//
// The database holds autosave snapshots: unsaved editor content keyed by
// file hash, so that a crash or forced quit does not lose work. Schema
// changes live in migrations/ as embedded .sql files applied once each.
package database
