// Package repositories implements the CLI's local SQLite store.
//
// Nothing in the generation pipeline reads from here. The store only remembers what this machine created so
// that later commands can list, rename or remove it, and it keeps an append-only log of feedback.
//
//   - [HistoryRepository] : playlists created from this machine, soft deleted on removal
//   - [FeedbackRepository] : feedback events; also a feedback sink
//
// Lookups that match no live row fail with [shared.ErrNotFound].
package repositories
