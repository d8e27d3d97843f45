// Package catalog runs planned queries against the music catalog and normalizes what comes back.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/services"
	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultLimit     = 10
	DefaultWorkers   = 3
	DefaultRateLimit = 10.0 // requests per second
)

// Searcher is the catalog search collaborator.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]services.SpotifyTrack, error)
}

// Opts configures an [Adapter]. Zero values use the defaults.
type Opts struct {
	Limit     int           // results requested per query
	Workers   int           // queries in flight at once
	RateLimit float64       // requests per second across all workers
	Timeout   time.Duration // per-query deadline; zero means none
	Logger    *log.Logger
}

// Adapter issues searches with bounded concurrency and pacing.
type Adapter struct {
	searcher Searcher
	opts     Opts
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewAdapter creates an [Adapter] over searcher.
func NewAdapter(searcher Searcher, opts Opts) *Adapter {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	return &Adapter{
		searcher: searcher,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Workers),
		logger:   shared.DiscardLogger(opts.Logger),
	}
}

// Search runs one query and returns its normalized tracks, each tagged with the query's rank.
//
// Errors are returned to the caller; [Adapter.SearchAll] is where they become soft failures.
func (a *Adapter) Search(ctx context.Context, query models.SearchQuery) ([]models.Track, error) {
	if a.searcher == nil {
		return nil, fmt.Errorf("%w: no catalog configured", shared.ErrUpstreamUnavailable)
	}

	parent := ctx
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	if err := a.limiter.Wait(ctx); err != nil {
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("%w: waiting for rate limiter: %v", shared.ErrTimeout, err)
	}

	raw, err := a.searcher.SearchTracks(ctx, query.Text, a.opts.Limit)
	if err != nil {
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: search %q: %v", shared.ErrTimeout, query.Text, err)
		}
		return nil, err
	}

	tracks := make([]models.Track, 0, len(raw))
	for _, r := range raw {
		if t, ok := Normalize(r, query.Rank); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// SearchAll runs every query concurrently and returns one result per query, in query order.
//
// A failing query is logged and yields no tracks; its siblings keep running. Only when every query fails does
// SearchAll return [shared.ErrUpstreamUnavailable].
func (a *Adapter) SearchAll(ctx context.Context, queries []models.SearchQuery) ([]models.QueryResult, error) {
	results := make([]models.QueryResult, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(a.opts.Workers)

	for i, q := range queries {
		g.Go(func() error {
			tracks, err := a.Search(ctx, q)
			results[i] = models.QueryResult{Query: q, Tracks: tracks, Err: err}
			if err != nil {
				a.logger.Warn("search failed", "query", q.Text, "rank", q.Rank, "error", err)
			} else {
				a.logger.Debug("search finished", "query", q.Text, "rank", q.Rank, "tracks", len(tracks))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []string
	for _, r := range results {
		if r.Err == nil {
			return results, nil
		}
		errs = append(errs, r.Err.Error())
	}
	return nil, fmt.Errorf("%w: all %d queries failed: %s", shared.ErrUpstreamUnavailable, len(queries), strings.Join(errs, "; "))
}

// Normalize converts a raw catalog track into a [models.Track]. Records without an id are rejected.
func Normalize(raw services.SpotifyTrack, rank int) (models.Track, bool) {
	if strings.TrimSpace(raw.ID) == "" {
		return models.Track{}, false
	}

	artists := make([]string, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			artists = append(artists, name)
		}
	}

	track := models.Track{
		ID:          raw.ID,
		Name:        raw.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       raw.Album.Name,
		URI:         raw.URI,
		ExternalURL: raw.ExternalURLs.Spotify,
		DurationMS:  max(raw.DurationMS, 0),
		Popularity:  min(max(raw.Popularity, 0), 100),
		Rank:        rank,
	}
	if track.URI == "" {
		track.URI = services.TrackURI(raw.ID)
	}
	if track.ExternalURL == "" {
		track.ExternalURL = "https://open.spotify.com/track/" + raw.ID
	}
	if raw.PreviewURL != nil {
		track.PreviewURL = *raw.PreviewURL
	}
	if len(raw.Album.Images) > 0 {
		track.ArtworkURL = raw.Album.Images[0].URL
	}
	return track, true
}
