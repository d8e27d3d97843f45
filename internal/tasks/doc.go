// Package tasks runs the playlist generation pipeline with real-time progress reporting.
//
// # Pipeline
//
// [Engine.FromAudio] transcribes first, then hands off to [Engine.FromText]:
//
//  1. Extract an intent from the transcript
//  2. Plan ranked search queries
//  3. Search the catalog concurrently (soft per-query failures)
//  4. Fall back to the transcript as a query when every planned query came back empty
//  5. Curate, then assemble and optionally persist the playlist
//
// Hard failures (blank input, timeouts, transcription errors, an unreachable catalog) abort with no result.
// A persistence failure returns the result together with the error so the caller can show what was curated.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking, so a nil or full channel never stalls a run.
package tasks
