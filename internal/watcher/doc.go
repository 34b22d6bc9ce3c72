// Package watcher implements the workspace watcher.
//
// The watcher:
//   - Rescans the open workspace roots on a fixed interval
//   - Picks up files created, renamed, or deleted outside the editor
//   - Leaves change notification to the Refresher it drives
package watcher
