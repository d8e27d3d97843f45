package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/djx/internal/models"
)

// FeedbackRepository appends feedback events. It satisfies the feedback intake's sink interface.
type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Record stores one event.
func (r *FeedbackRepository) Record(ctx context.Context, fb models.Feedback) error {
	query := `INSERT INTO feedback (id, track_id, action, playlist_id, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, fb.ID, fb.TrackID, string(fb.Action), fb.PlaylistID, fb.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// List returns events newest first, optionally only those for trackID.
func (r *FeedbackRepository) List(ctx context.Context, trackID string, limit int) ([]models.Feedback, error) {
	query := `SELECT id, track_id, action, playlist_id, created_at FROM feedback`
	args := []any{}
	if trackID != "" {
		query += " WHERE track_id = ?"
		args = append(args, trackID)
	}
	query += " ORDER BY created_at DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	events := []models.Feedback{}
	for rows.Next() {
		var (
			fb     models.Feedback
			action string
		)
		if err := rows.Scan(&fb.ID, &fb.TrackID, &action, &fb.PlaylistID, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.Action = models.FeedbackAction(action)
		events = append(events, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}
