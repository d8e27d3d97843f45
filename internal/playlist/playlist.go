// Package playlist assembles curated tracks into a [models.PlaylistResult] and, when asked, a remote playlist.
//
// Persistence goes through the [API] collaborator. Tracks are added in curated order, at most [BatchSize] per call.
// A failure after the remote playlist exists still returns the result with its id and url so the caller can
// follow up on the half-built playlist.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

const (
	BatchSize   = 100
	DefaultName = "djx Playlist"
	Signature   = "Generated by djx"
)

// fieldFilters are catalog search prefixes that do not belong in a display name.
var fieldFilters = []string{"artist:", "track:", "album:", "genre:", "year:"}

// API is the remote playlist store.
type API interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (id, webURL string, err error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	RenamePlaylist(ctx context.Context, playlistID, name string) error
	DeletePlaylist(ctx context.Context, playlistID string) error
}

// Request carries one pipeline run's output into [Assembler.Assemble].
type Request struct {
	Transcript string
	Intent     models.Intent
	Queries    []models.SearchQuery
	Tracks     []models.Track
	Persist    bool
	Name       string // overrides the generated name when set
}

// PersistenceError reports a failed remote step. PlaylistID is set when the playlist was created before the
// failure.
type PersistenceError struct {
	Stage      string // "create" or "add_tracks"
	PlaylistID string
	Batch      int // zero-based index of the failed add batch
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.Stage == "add_tracks" {
		return fmt.Sprintf("%v: adding batch %d to playlist %s: %v", shared.ErrPlaylistPersistence, e.Batch, e.PlaylistID, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", shared.ErrPlaylistPersistence, e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == shared.ErrPlaylistPersistence }

// Opts configures an [Assembler].
type Opts struct {
	Public  bool
	Timeout time.Duration // per remote call; zero means none
	Logger  *log.Logger
	Now     func() time.Time
}

// Assembler builds playlist results and manages remote playlists.
type Assembler struct {
	api    API
	opts   Opts
	logger *log.Logger
}

// NewAssembler creates an [Assembler]. api may be nil when nothing will be persisted.
func NewAssembler(api API, opts Opts) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{api: api, opts: opts, logger: shared.DiscardLogger(opts.Logger)}
}

// Assemble fills a result from req and persists it when req.Persist is set and there are tracks.
//
// With Persist set and no tracks nothing is created and the error is nil. The result then has TotalTracks == 0
// and no PlaylistID, which a persisting caller reports as nothing to save. Persistence failures return the
// result alongside a [*PersistenceError].
func (a *Assembler) Assemble(ctx context.Context, req Request) (*models.PlaylistResult, error) {
	tracks := req.Tracks
	if tracks == nil {
		tracks = []models.Track{}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = Name(req.Queries)
	}

	result := &models.PlaylistResult{
		Transcript:   req.Transcript,
		Intent:       req.Intent,
		Queries:      req.Queries,
		Tracks:       tracks,
		PlaylistName: name,
		Description:  Description(req.Queries, len(tracks)),
		GeneratedAt:  a.opts.Now().UTC(),
		TotalTracks:  len(tracks),
	}

	if !req.Persist {
		return result, nil
	}
	if len(tracks) == 0 {
		a.logger.Info("nothing to persist, skipping playlist creation")
		return result, nil
	}
	if a.api == nil {
		return result, &PersistenceError{Stage: "create", Err: shared.ErrNotAuthenticated}
	}

	id, webURL, err := a.create(ctx, result.PlaylistName, result.Description)
	if err != nil {
		a.logger.Error("playlist creation failed", "name", result.PlaylistName, "error", err)
		return result, &PersistenceError{Stage: "create", Err: err}
	}
	result.PlaylistID = id
	result.PlaylistURL = webURL

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	for batch, start := 0, 0; start < len(ids); batch, start = batch+1, start+BatchSize {
		end := min(start+BatchSize, len(ids))
		if err := a.call(ctx, func(ctx context.Context) error { return a.api.AddTracks(ctx, id, ids[start:end]) }); err != nil {
			a.logger.Error("adding tracks failed", "playlist", id, "batch", batch, "error", err)
			return result, &PersistenceError{Stage: "add_tracks", PlaylistID: id, Batch: batch, Err: err}
		}
	}

	a.logger.Info("playlist created", "id", id, "tracks", len(ids))
	return result, nil
}

func (a *Assembler) create(ctx context.Context, name, description string) (id, webURL string, err error) {
	err = a.call(ctx, func(ctx context.Context) error {
		var cerr error
		id, webURL, cerr = a.api.CreatePlaylist(ctx, name, description, a.opts.Public)
		return cerr
	})
	return id, webURL, err
}

// Rename changes a remote playlist's name. Renaming to the current name succeeds.
func (a *Assembler) Rename(ctx context.Context, ref, name string) error {
	id := CleanID(ref)
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	if a.api == nil {
		return shared.ErrNotAuthenticated
	}
	return a.call(ctx, func(ctx context.Context) error { return a.api.RenamePlaylist(ctx, id, name) })
}

// Remove deletes a remote playlist. An unknown id fails with [shared.ErrNotFound].
func (a *Assembler) Remove(ctx context.Context, ref string) error {
	id := CleanID(ref)
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	if a.api == nil {
		return shared.ErrNotAuthenticated
	}
	return a.call(ctx, func(ctx context.Context) error { return a.api.DeletePlaylist(ctx, id) })
}

func (a *Assembler) call(ctx context.Context, fn func(context.Context) error) error {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return err
}

// Name derives a display name from the first query: "<Title Cased Query> Vibes".
func Name(queries []models.SearchQuery) string {
	if len(queries) == 0 {
		return DefaultName
	}
	text := queries[0].Text
	for _, f := range fieldFilters {
		text = strings.ReplaceAll(text, f, "")
	}
	text = strings.Join(strings.Fields(strings.ReplaceAll(text, `"`, "")), " ")
	if text == "" {
		return DefaultName
	}
	return titleCase(text) + " Vibes"
}

// Description lists up to two queries and the track count.
func Description(queries []models.SearchQuery, count int) string {
	parts := make([]string, 0, 3)
	if texts := queryTexts(queries); len(texts) > 0 {
		parts = append(parts, "Queries: "+strings.Join(texts[:min(2, len(texts))], ", "))
	}
	parts = append(parts, fmt.Sprintf("%d tracks", count), Signature)
	return strings.Join(parts, " | ")
}

// CleanID extracts a playlist id from a bare id, a spotify:playlist: URI or an open.spotify.com URL.
func CleanID(ref string) string {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok {
		return rest
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == "playlist" {
				return segments[i+1]
			}
		}
		return ""
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

func queryTexts(queries []models.SearchQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Text
	}
	return out
}

// titleCase upper-cases the first letter of each word and lower-cases the rest. Words that start with a digit
// are left alone so "90s" stays "90s".
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if unicode.IsLetter(runes[0]) {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
