package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/djx/internal/formatter"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/planner"
	"github.com/desertthunder/djx/internal/services"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate runs the pipeline for a typed (--text) or recorded (--audio) request and renders the result.
//
// With --save the playlist is created on Spotify and recorded in the local history. When the playlist could not
// be fully persisted the tracks are still rendered before the error is returned.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(cmd.String("text"))
	audioPath := cmd.String("audio")

	switch {
	case text == "" && audioPath == "":
		return fmt.Errorf("%w: either --text or --audio must be provided", shared.ErrMissingArgument)
	case text != "" && audioPath != "":
		return fmt.Errorf("%w: cannot specify both --text and --audio", shared.ErrInvalidInput)
	}

	format := outputFormat(cmd)
	opts := tasks.Options{Persist: cmd.Bool("save"), Name: cmd.String("name")}

	progress, wait := r.logProgress()
	var (
		result *models.PlaylistResult
		err    error
	)
	if audioPath != "" {
		audio, audioFormat, readErr := readAudio(audioPath, cmd.String("format"))
		if readErr != nil {
			close(progress)
			wait()
			return readErr
		}
		result, err = r.engine.FromAudio(ctx, audio, audioFormat, opts, progress)
	} else {
		result, err = r.engine.FromText(ctx, text, opts, progress)
	}
	close(progress)
	wait()

	if err != nil && (result == nil || !errors.Is(err, shared.ErrPlaylistPersistence)) {
		return err
	}

	if result.Persisted() {
		r.recordHistory(ctx, result)
	}

	if path := cmd.String("export"); path != "" {
		if exportErr := r.export(result, format, path, cmd.Bool("pretty")); exportErr != nil {
			return exportErr
		}
	} else {
		data, renderErr := formatter.Render(result, format, cmd.Bool("pretty"))
		if renderErr != nil {
			return renderErr
		}
		if _, writeErr := r.output.Write(data); writeErr != nil {
			return fmt.Errorf("failed to write output: %w", writeErr)
		}
	}

	return err
}

// Transcribe prints the transcript of a recorded request.
func (r *Runner) Transcribe(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: audio file path is required", shared.ErrMissingArgument)
	}

	audio, format, err := readAudio(path, cmd.String("format"))
	if err != nil {
		return err
	}

	r.logger.Info("transcribing", "file", path, "format", format, "bytes", len(audio))
	transcript, err := r.engine.Transcribe(ctx, audio, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", transcript)
}

// Intent prints the parsed intent and the searches it plans.
func (r *Runner) Intent(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(cmd.StringArg("text"))
	if text == "" {
		return fmt.Errorf("%w: request text is required", shared.ErrMissingArgument)
	}

	intent, err := r.engine.ParseIntent(ctx, text)
	if err != nil {
		return err
	}
	plan := planner.Plan(intent, r.plannerOpts())

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"transcript":     text,
			"parsed_intent":  intent,
			"search_queries": plan,
		}, cmd.Bool("pretty"))
	}

	facets := intent.FacetMap()
	if len(facets) == 0 {
		r.writePlain("Intent: (none, searching the request as typed)\n")
	} else {
		r.writePlain("Intent:\n")
		for _, f := range models.Facets {
			if v, ok := facets[string(f)]; ok {
				r.writePlain("  %-7s %s\n", f+":", v)
			}
		}
	}

	r.writePlain("Searches:\n")
	for _, q := range plan {
		r.writePlain("  %d. %s\n", q.Rank+1, q.Text)
	}
	return nil
}

// logProgress drains pipeline updates into the logger until the returned channel is closed.
// wait blocks until the drain has finished.
func (r *Runner) logProgress() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()
	return progress, wg.Wait
}

func (r *Runner) recordHistory(ctx context.Context, result *models.PlaylistResult) {
	if r.history == nil {
		r.logger.Debug("no database configured, skipping history", "playlist", result.PlaylistID)
		return
	}

	rec := &models.PlaylistRecord{
		RemoteID:   result.PlaylistID,
		Name:       result.PlaylistName,
		URL:        result.PlaylistURL,
		Transcript: result.Transcript,
		TrackCount: len(result.Tracks),
	}
	if err := r.history.Create(ctx, rec); err != nil {
		r.logger.Warn("failed to record playlist history", "playlist", result.PlaylistID, "error", err)
	}
}

func (r *Runner) export(result *models.PlaylistResult, format, path string, pretty bool) error {
	switch format {
	case formatter.FormatCSV:
		files, err := formatter.WriteCSVExport(result, strings.TrimSuffix(path, ".csv"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Tracks written to %s\n", files.TracksFile)
		r.writePlain("✓ Metadata written to %s\n", files.MetadataFile)
	case formatter.FormatMarkdown, "md":
		export, err := formatter.WriteMarkdownExport(result, path)
		if err != nil {
			return err
		}
		r.writePlain("✓ Markdown export written to %s (%d files)\n", export.Directory, len(export.Files))
	case formatter.FormatText, "txt":
		written, err := formatter.WriteTextExport(result, path)
		if err != nil {
			return err
		}
		r.writePlain("✓ Tracks written to %s\n", written)
	default:
		data, err := formatter.Render(result, format, pretty)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		r.writePlain("✓ Wrote %s\n", path)
	}
	return nil
}

func outputFormat(cmd *cli.Command) string {
	if cmd.Bool("json") {
		return formatter.FormatJSON
	}
	return strings.ToLower(strings.TrimSpace(cmd.String("output")))
}

// readAudio loads an audio file. The format falls back to the file extension.
func readAudio(path, format string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if info.Size() == 0 {
		return nil, "", fmt.Errorf("%w: %s is empty", shared.ErrEmptyInput, path)
	}
	if info.Size() > services.MaxAudioBytes {
		return nil, "", fmt.Errorf("%w: %s is larger than %d bytes", shared.ErrInvalidInput, path, services.MaxAudioBytes)
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}

	if format == "" {
		format = filepath.Ext(path)
	}
	return audio, services.NormalizeAudioFormat(format), nil
}
