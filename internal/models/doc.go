// Package models defines the value types that flow through the djx pipeline.
//
// Request-scoped values, created once and never mutated:
//   - [Intent] : facets inferred from a transcript plus the transcript fallback
//   - [SearchQuery] : one bounded catalog query with its provenance
//   - [Track] : a normalized catalog track tagged with the rank of the query that found it
//   - [QueryResult] : the tracks (or soft error) for one query
//   - [PlaylistResult] : the response handed to the presentation layer
//
// Local bookkeeping kept by the CLI:
//   - [PlaylistRecord] : a playlist created from this machine
//   - [Feedback] : a thumbs up/down event on a track
package models
