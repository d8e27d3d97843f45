// Package feedback records listener reactions to curated tracks.
//
// Events are fanned out to every registered [Sink]. Nothing here changes how tracks are curated.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// Sink receives accepted feedback events.
type Sink interface {
	Record(ctx context.Context, fb models.Feedback) error
}

// Intake validates feedback and hands it to its sinks.
type Intake struct {
	sinks  []Sink
	logger *log.Logger
	now    func() time.Time
}

// NewIntake creates an [Intake] writing to sinks, in order.
func NewIntake(logger *log.Logger, sinks ...Sink) *Intake {
	return &Intake{sinks: sinks, logger: shared.DiscardLogger(logger), now: time.Now}
}

// Submit validates and records one feedback event.
//
// Every sink is attempted; sink errors are joined and returned with the accepted event.
func (in *Intake) Submit(ctx context.Context, trackID string, action models.FeedbackAction, playlistID string) (*models.Feedback, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown feedback action %q", shared.ErrInvalidInput, action)
	}

	fb := models.Feedback{
		ID:         shared.GenerateID(),
		TrackID:    trackID,
		Action:     action,
		PlaylistID: strings.TrimSpace(playlistID),
		CreatedAt:  in.now().UTC(),
	}

	var errs []error
	for _, sink := range in.sinks {
		if err := sink.Record(ctx, fb); err != nil {
			in.logger.Warn("feedback sink failed", "id", fb.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return &fb, errors.Join(errs...)
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Record(_ context.Context, fb models.Feedback) error {
	shared.DiscardLogger(s.Logger).Info("feedback received",
		"id", fb.ID, "track", fb.TrackID, "action", fb.Action, "playlist", fb.PlaylistID)
	return nil
}
