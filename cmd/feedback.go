package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Feedback records a more-like-this or less-like-this reaction to a track.
func (r *Runner) Feedback(ctx context.Context, cmd *cli.Command) error {
	action, err := parseAction(cmd.String("action"))
	if err != nil {
		return err
	}

	fb, err := r.intake.Submit(ctx, cmd.String("track"), action, cmd.String("playlist"))
	if fb == nil {
		return err
	}
	if err != nil {
		r.logger.Warn("feedback was not stored everywhere", "id", fb.ID, "error", err)
	}
	return r.writePlain("✓ Feedback %s recorded (%s)\n", fb.ID, fb.Action)
}

// Refine acknowledges a refinement request. Nothing is changed yet.
func (r *Runner) Refine(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("refine requested", "text", cmd.StringArg("text"))
	return r.writePlain("✓ Refinement request accepted\n")
}

func parseAction(raw string) (models.FeedbackAction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "more", "+", "up", string(models.MoreLikeThis):
		return models.MoreLikeThis, nil
	case "less", "-", "down", string(models.LessLikeThis):
		return models.LessLikeThis, nil
	default:
		return "", fmt.Errorf("%w: unknown feedback action %q", shared.ErrInvalidInput, raw)
	}
}
