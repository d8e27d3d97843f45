package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

const playlistColumns = `id, remote_id, name, url, transcript, track_count, created_at, updated_at, deleted_at`

// HistoryRepository stores [models.PlaylistRecord] rows.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// Create inserts rec, assigning its id and timestamps.
//
// Recording a remote id that was removed earlier revives the old row.
func (r *HistoryRepository) Create(ctx context.Context, rec *models.PlaylistRecord) error {
	if strings.TrimSpace(rec.RemoteID) == "" {
		return fmt.Errorf("%w: remote playlist id is required", shared.ErrInvalidInput)
	}

	now := r.now().UTC()
	rec.ID = shared.GenerateID()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.DeletedAt = nil

	query := `
		INSERT INTO playlists (id, remote_id, name, url, transcript, track_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			transcript = excluded.transcript,
			track_count = excluded.track_count,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.RemoteID, rec.Name, rec.URL, rec.Transcript, rec.TrackCount, now, now,
	); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	stored, err := r.GetByRemoteID(ctx, rec.RemoteID)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

// Get retrieves a live record by local id.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*models.PlaylistRecord, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`
	rec, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "playlist", id)
	}
	return rec, nil
}

// GetByRemoteID retrieves a live record by the remote playlist id.
func (r *HistoryRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.PlaylistRecord, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE remote_id = ? AND deleted_at IS NULL`
	rec, err := scanPlaylist(r.db.QueryRowContext(ctx, query, remoteID))
	if err != nil {
		return nil, notFound(err, "playlist", remoteID)
	}
	return rec, nil
}

// Resolve finds a record by remote id first, then by local id.
func (r *HistoryRepository) Resolve(ctx context.Context, ref string) (*models.PlaylistRecord, error) {
	rec, err := r.GetByRemoteID(ctx, ref)
	if err == nil {
		return rec, nil
	}
	return r.Get(ctx, ref)
}

// List returns live records, newest first. A limit of zero or less returns everything.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]*models.PlaylistRecord, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL ORDER BY created_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	records := []*models.PlaylistRecord{}
	for rows.Next() {
		rec, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Rename updates the stored name for a remote playlist.
func (r *HistoryRepository) Rename(ctx context.Context, remoteID, name string) error {
	query := `UPDATE playlists SET name = ?, updated_at = ? WHERE remote_id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, name, r.now().UTC(), remoteID)
	if err != nil {
		return fmt.Errorf("failed to rename playlist: %w", err)
	}
	return expectRows(result, "playlist", remoteID)
}

// MarkDeleted soft-deletes the record for a remote playlist.
func (r *HistoryRepository) MarkDeleted(ctx context.Context, remoteID string) error {
	now := r.now().UTC()
	query := `UPDATE playlists SET deleted_at = ?, updated_at = ? WHERE remote_id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, now, now, remoteID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectRows(result, "playlist", remoteID)
}

func scanPlaylist(row scanner) (*models.PlaylistRecord, error) {
	var (
		rec       models.PlaylistRecord
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.RemoteID, &rec.Name, &rec.URL, &rec.Transcript, &rec.TrackCount,
		&rec.CreatedAt, &rec.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}
	return &rec, nil
}
