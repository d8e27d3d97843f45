// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one request through these views:
//  1. [GeneratingView] : Monitor pipeline progress for the transcript
//  2. [TrackListView] : Browse the curated tracks, save them as a playlist, leave feedback
//  3. [SavingView] : Wait for the playlist to be created
//  4. [ErrorView] : Show why generation failed
//
// Progress updates flow through a channel from the pipeline engine and arrive as [Msg] values.
// Saving reuses the tracks already shown; it does not run the pipeline again.
//
// Keyboard navigation uses vim-style bindings (j/k, s, +/-, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
