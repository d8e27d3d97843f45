package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/djx-tui.log"

// TUI generates a playlist for --text and opens the interactive preview.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, ui.Opts{
		Generator:  r.engine,
		Saver:      r.assembler,
		Feedback:   r.intake,
		Transcript: cmd.String("text"),
		Name:       cmd.String("name"),
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if model.Saved() {
		result := model.Result()
		r.recordHistory(ctx, result)
		r.writePlain("✓ Saved %s (%d tracks)\n%s\n", result.PlaylistName, len(result.Tracks), result.PlaylistURL)
	}
	return model.Err()
}
