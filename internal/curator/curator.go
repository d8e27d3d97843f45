// Package curator merges per-query search results into the final ordered track list.
package curator

import (
	"sort"

	"github.com/desertthunder/djx/internal/models"
)

// DefaultTargetSize is the playlist length used when none is configured.
const DefaultTargetSize = 20

// Curate flattens groups, keeps one instance per track ID and returns at most targetSize tracks.
//
// A duplicate keeps the instance found by the lowest-ranked query, then the more popular one. The output is ordered
// by rank ascending, popularity descending and ID ascending, so the order of groups never changes the result.
// An empty input yields an empty, non-nil list.
func Curate(groups []models.QueryResult, targetSize int) []models.Track {
	best := make(map[string]models.Track)
	for _, group := range groups {
		for _, track := range group.Tracks {
			if track.ID == "" {
				continue
			}
			track.Rank = group.Query.Rank
			if current, ok := best[track.ID]; !ok || better(track, current) {
				best[track.ID] = track
			}
		}
	}

	tracks := make([]models.Track, 0, len(best))
	for _, track := range best {
		tracks = append(tracks, track)
	}
	sort.SliceStable(tracks, func(i, j int) bool { return less(tracks[i], tracks[j]) })

	if targetSize < 0 {
		targetSize = 0
	}
	if len(tracks) > targetSize {
		tracks = tracks[:targetSize]
	}
	return tracks
}

// better reports whether a should replace b for the same track ID.
func better(a, b models.Track) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	// identical keys; prefer the lexically smaller name so the winner never depends on input order
	return a.Name < b.Name
}

func less(a, b models.Track) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	return a.ID < b.ID
}
