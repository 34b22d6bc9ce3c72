// Package workspace implements the file tree the editor works on.
//
// A Tree mirrors one root directory on disk:
//   - Directories and markdown files are identified by a Hash of their absolute path
//   - Nodes are rebuilt by a rescan after every mutation and never modified in place
//   - Lookups hand out immutable snapshots, so callers may keep them across rescans
package workspace
