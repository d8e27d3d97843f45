package tasks

import (
	"fmt"

	"github.com/desertthunder/djx/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within the run
	Total   int    // Total steps in the run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	Transcribe Phase = iota
	ExtractIntent
	PlanQueries
	SearchTracks
	Curate
	CreatePlaylist
	Done
)

// totalSteps counts the phases after transcription.
const totalSteps = 6

func (p Phase) String() string {
	switch p {
	case Transcribe:
		return "transcribe"
	case ExtractIntent:
		return "extract_intent"
	case PlanQueries:
		return "plan_queries"
	case SearchTracks:
		return "search_tracks"
	case Curate:
		return "curate"
	case CreatePlaylist:
		return "create_playlist"
	case Done:
		return "done"
	default:
		return ""
	}
}

func transcribeUpdate(size int) ProgressUpdate {
	return ProgressUpdate{Phase: Transcribe, Step: 0, Total: totalSteps, Message: fmt.Sprintf("Transcribing %d bytes of audio...", size)}
}

func intentUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: ExtractIntent, Step: 1, Total: totalSteps, Message: "Reading the request..."}
}

func planUpdate(intent models.Intent) ProgressUpdate {
	return ProgressUpdate{Phase: PlanQueries, Step: 2, Total: totalSteps, Message: "Planning searches...", Data: intent}
}

func searchUpdate(queries []models.SearchQuery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    3,
		Total:   totalSteps,
		Message: fmt.Sprintf("Searching %d queries...", len(queries)),
		Data:    queries,
	}
}

func fallbackUpdate(q models.SearchQuery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    3,
		Total:   totalSteps,
		Message: fmt.Sprintf("Nothing found, retrying with %q...", q.Text),
		Data:    q,
	}
}

func curateUpdate(found int) ProgressUpdate {
	return ProgressUpdate{Phase: Curate, Step: 4, Total: totalSteps, Message: fmt.Sprintf("Curating %d candidates...", found)}
}

func createUpdate(tracks int) ProgressUpdate {
	return ProgressUpdate{Phase: CreatePlaylist, Step: 5, Total: totalSteps, Message: fmt.Sprintf("Saving playlist with %d tracks...", tracks)}
}

func doneUpdate(result *models.PlaylistResult) ProgressUpdate {
	msg := fmt.Sprintf("Curated %d tracks", result.TotalTracks)
	if result.Persisted() {
		msg = fmt.Sprintf("Created %s (%d tracks)", result.PlaylistName, result.TotalTracks)
	}
	return ProgressUpdate{Phase: Done, Step: totalSteps, Total: totalSteps, Message: msg, Data: result}
}
