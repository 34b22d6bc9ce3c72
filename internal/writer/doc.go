// Package writer implements the batching autosave writer.
//
// The editor queues a Snapshot for every autosave. The writer consumes the
// queue, keeps only the newest snapshot per file inside a batch, and writes
// batches to the autosave store when the batch is full, when the flush
// interval elapses, and on Stop.
//
// Saving or reverting a file calls Forget, which drops pending snapshots for
// that file and deletes stored ones up to the given time, so stale drafts
// are never resurrected by a late flush.
package writer
