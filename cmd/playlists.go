package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Rename renames a saved playlist on Spotify and in the local history.
//
// The id may be a Spotify id, URI or URL, or a local history id.
func (r *Runner) Rename(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("id")
	name := strings.TrimSpace(cmd.StringArg("name"))
	if ref == "" || name == "" {
		return fmt.Errorf("%w: usage: djx rename ID NAME", shared.ErrMissingArgument)
	}

	id := r.resolveRemote(ctx, ref)
	if err := r.assembler.Rename(ctx, id, name); err != nil {
		return err
	}

	if r.history != nil {
		if err := r.history.Rename(ctx, id, name); err != nil && !errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("failed to update playlist history", "playlist", id, "error", err)
		}
	}

	return r.writePlain("✓ Renamed %s to %q\n", id, name)
}

// Remove unfollows a saved playlist on Spotify. The local history entry is dropped whatever the remote outcome.
func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("id")
	if ref == "" {
		return fmt.Errorf("%w: usage: djx remove ID", shared.ErrMissingArgument)
	}

	id := r.resolveRemote(ctx, ref)
	remoteErr := r.assembler.Remove(ctx, id)

	if r.history != nil {
		if err := r.history.MarkDeleted(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("failed to update playlist history", "playlist", id, "error", err)
		}
	}

	if remoteErr != nil {
		return remoteErr
	}
	return r.writePlain("✓ Removed %s\n", id)
}

// History lists playlists saved from this machine, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: no database configured, run `djx setup`", shared.ErrMissingConfig)
	}

	records, err := r.history.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		return r.writePlain("No saved playlists yet. Try: djx generate --text \"...\" --save\n")
	}

	r.writePlain("Found %d playlists:\n\n", len(records))
	for i, rec := range records {
		r.writePlain("%d. %s\n", i+1, rec.Name)
		r.writePlain("   ID: %s\n", rec.RemoteID)
		r.writePlain("   Tracks: %d\n", rec.TrackCount)
		if rec.URL != "" {
			r.writePlain("   URL: %s\n", rec.URL)
		}
		if rec.Transcript != "" {
			r.writePlain("   Request: %s\n", rec.Transcript)
		}
		r.writePlain("   Created: %s\n\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// resolveRemote maps a local history id to its Spotify id. Anything else is cleaned as a Spotify reference.
func (r *Runner) resolveRemote(ctx context.Context, ref string) string {
	id := playlist.CleanID(ref)
	if r.history == nil {
		return id
	}
	rec, err := r.history.Resolve(ctx, id)
	if err != nil {
		return id
	}
	return rec.RemoteID
}
