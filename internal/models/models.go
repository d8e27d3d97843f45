package models

import (
	"fmt"
	"strings"
	"time"
)

// Facet names one recognized intent attribute.
type Facet string

const (
	FacetMood   Facet = "mood"
	FacetGenre  Facet = "genre"
	FacetEra    Facet = "era"
	FacetTempo  Facet = "tempo"
	FacetEnergy Facet = "energy"
)

// Facets lists every recognized facet in canonical order.
var Facets = []Facet{FacetMood, FacetGenre, FacetEra, FacetTempo, FacetEnergy}

// Intent holds the attributes inferred from a transcript. Empty facets are absent.
type Intent struct {
	Mood     string `json:"mood,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Era      string `json:"era,omitempty"`
	Tempo    string `json:"tempo,omitempty"`
	Energy   string `json:"energy,omitempty"`
	Fallback string `json:"fallback"`
}

// FallbackIntent is the degraded intent carrying only the transcript.
func FallbackIntent(transcript string) Intent {
	return Intent{Fallback: transcript}
}

// Get returns the value of facet f.
func (i Intent) Get(f Facet) string {
	switch f {
	case FacetMood:
		return i.Mood
	case FacetGenre:
		return i.Genre
	case FacetEra:
		return i.Era
	case FacetTempo:
		return i.Tempo
	case FacetEnergy:
		return i.Energy
	default:
		return ""
	}
}

// Set assigns facet f. Unknown facets are ignored.
func (i *Intent) Set(f Facet, value string) {
	switch f {
	case FacetMood:
		i.Mood = value
	case FacetGenre:
		i.Genre = value
	case FacetEra:
		i.Era = value
	case FacetTempo:
		i.Tempo = value
	case FacetEnergy:
		i.Energy = value
	}
}

// HasFacets reports whether any facet is present.
func (i Intent) HasFacets() bool {
	for _, f := range Facets {
		if strings.TrimSpace(i.Get(f)) != "" {
			return true
		}
	}
	return false
}

// FacetMap returns the present facets keyed by name.
func (i Intent) FacetMap() map[string]string {
	m := make(map[string]string)
	for _, f := range Facets {
		if v := strings.TrimSpace(i.Get(f)); v != "" {
			m[string(f)] = v
		}
	}
	return m
}

// SearchQuery is one planned catalog query.
//
// Facets records which intent facets produced the text; it is empty for the transcript fallback.
type SearchQuery struct {
	Text   string  `json:"text"`
	Facets []Facet `json:"facets,omitempty"`
	Rank   int     `json:"rank"`
}

// IsFallback reports whether q was built from the raw transcript.
func (q SearchQuery) IsFallback() bool {
	return len(q.Facets) == 0
}

// Track is a normalized catalog track.
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	URI         string `json:"uri,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ArtworkURL  string `json:"album_art_url,omitempty"`
	ExternalURL string `json:"spotify_url"`
	DurationMS  int    `json:"duration_ms"`
	Popularity  int    `json:"popularity"`
	Rank        int    `json:"rank"`
}

// Duration formats DurationMS as m:ss.
func (t Track) Duration() string {
	secs := t.DurationMS / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// QueryResult pairs a query with what the catalog returned for it.
//
// Err is set when the search failed softly; Tracks is then empty.
type QueryResult struct {
	Query  SearchQuery `json:"query"`
	Tracks []Track     `json:"tracks"`
	Err    error       `json:"-"`
}

// PlaylistResult is the response returned to the presentation layer.
type PlaylistResult struct {
	Transcript   string        `json:"transcript"`
	Intent       Intent        `json:"parsed_intent"`
	Queries      []SearchQuery `json:"search_queries,omitempty"`
	Tracks       []Track       `json:"tracks"`
	PlaylistID   string        `json:"playlist_id,omitempty"`
	PlaylistURL  string        `json:"playlist_url,omitempty"`
	PlaylistName string        `json:"playlist_name,omitempty"`
	Description  string        `json:"description,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
	TotalTracks  int           `json:"total_tracks"`
}

// Persisted reports whether the result points at a playlist on the remote service.
func (r *PlaylistResult) Persisted() bool {
	return r != nil && r.PlaylistID != ""
}

// FeedbackAction is the kind of reaction a listener gave a track.
type FeedbackAction string

const (
	MoreLikeThis FeedbackAction = "more_like_this"
	LessLikeThis FeedbackAction = "less_like_this"
)

// Valid reports whether a is a known action.
func (a FeedbackAction) Valid() bool {
	return a == MoreLikeThis || a == LessLikeThis
}

// Feedback is one accepted feedback event.
type Feedback struct {
	ID         string         `json:"id"`
	TrackID    string         `json:"track_id"`
	Action     FeedbackAction `json:"action"`
	PlaylistID string         `json:"playlist_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PlaylistRecord is the CLI's local reference to a playlist it created.
type PlaylistRecord struct {
	ID         string     `json:"id"`
	RemoteID   string     `json:"remote_id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Transcript string     `json:"transcript"`
	TrackCount int        `json:"track_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}
