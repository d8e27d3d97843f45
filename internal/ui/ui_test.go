package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
	tu "github.com/desertthunder/djx/internal/testing"
)

type fakeGenerator struct {
	result *models.PlaylistResult
	err    error
}

func (g *fakeGenerator) FromText(_ context.Context, transcript string, _ tasks.Options, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error) {
	progress <- tasks.ProgressUpdate{Phase: tasks.ExtractIntent, Step: 1, Total: 6, Message: "Reading the request..."}
	progress <- tasks.ProgressUpdate{Phase: tasks.Done, Step: 6, Total: 6, Message: "Done"}
	if g.result != nil {
		g.result.Transcript = transcript
	}
	return g.result, g.err
}

type fakeFeedback struct {
	mu    sync.Mutex
	calls []models.Feedback
	err   error
}

func (f *fakeFeedback) Submit(_ context.Context, trackID string, action models.FeedbackAction, playlistID string) (*models.Feedback, error) {
	if f.err != nil {
		return nil, f.err
	}
	fb := models.Feedback{ID: "fb1", TrackID: trackID, Action: action, PlaylistID: playlistID}
	f.mu.Lock()
	f.calls = append(f.calls, fb)
	f.mu.Unlock()
	return &fb, nil
}

func sampleResult() *models.PlaylistResult {
	return &models.PlaylistResult{
		Intent:  models.Intent{Genre: "rock"},
		Queries: []models.SearchQuery{{Text: "genre:rock", Facets: []models.Facet{models.FacetGenre}, Rank: 0}},
		Tracks: []models.Track{
			{ID: "t1", Name: "One", Artist: "A", Album: "X", DurationMS: 185000},
			{ID: "t2", Name: "Two", Artist: "B", DurationMS: 61000},
		},
		TotalTracks: 2,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// generate runs Init and feeds every message back until generation finishes.
func generate(t *testing.T, m *Model) {
	t.Helper()

	cmd := m.Init()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		_, cmd = m.Update(msg)
		if m.view != GeneratingView {
			return
		}
	}
	t.Fatalf("generation did not finish, view = %v", m.view)
}

func TestGenerate(t *testing.T) {
	t.Run("shows tracks when generation succeeds", func(t *testing.T) {
		m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: sampleResult()}, Transcript: "rock please"})
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		generate(t, m)

		if m.view != TrackListView {
			t.Fatalf("view = %v, want TrackListView", m.view)
		}
		if got := len(m.trackList.Items()); got != 2 {
			t.Fatalf("items = %d, want 2", got)
		}
		if m.Result().Transcript != "rock please" {
			t.Errorf("transcript = %q", m.Result().Transcript)
		}
		if m.progress.Phase != tasks.Done {
			t.Errorf("last progress phase = %v, want Done", m.progress.Phase)
		}
		if !strings.Contains(m.View(), "One") {
			t.Errorf("view does not list tracks:\n%s", m.View())
		}
	})

	t.Run("shows error when generation fails", func(t *testing.T) {
		m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{err: shared.ErrUpstreamUnavailable}})
		generate(t, m)

		if m.view != ErrorView {
			t.Fatalf("view = %v, want ErrorView", m.view)
		}
		if !errors.Is(m.Err(), shared.ErrUpstreamUnavailable) {
			t.Errorf("err = %v", m.Err())
		}
		if !strings.Contains(m.View(), "Error") {
			t.Errorf("view = %q", m.View())
		}
	})

	t.Run("fails without generator", func(t *testing.T) {
		m := NewModel(context.Background(), Opts{})
		generate(t, m)
		if m.view != ErrorView {
			t.Fatalf("view = %v, want ErrorView", m.view)
		}
	})

	t.Run("empty result warns", func(t *testing.T) {
		m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: &models.PlaylistResult{Tracks: []models.Track{}}}})
		generate(t, m)
		if !strings.Contains(m.status, "No tracks") {
			t.Errorf("status = %q", m.status)
		}
	})
}

func TestSave(t *testing.T) {
	t.Run("persists the shown tracks once", func(t *testing.T) {
		api := tu.NewMockPlaylistAPI()
		m := NewModel(context.Background(), Opts{
			Generator: &fakeGenerator{result: sampleResult()},
			Saver:     playlist.NewAssembler(api, playlist.Opts{}),
			Name:      "Road Trip",
		})
		generate(t, m)

		_, cmd := m.Update(runes("s"))
		if m.view != SavingView {
			t.Fatalf("view = %v, want SavingView", m.view)
		}
		if cmd == nil {
			t.Fatal("expected save command")
		}
		m.Update(cmd())

		if !m.Saved() {
			t.Fatal("expected result to be saved")
		}
		if m.Result().PlaylistID != "pl1" {
			t.Errorf("playlist id = %q, want pl1", m.Result().PlaylistID)
		}
		if name, _ := api.Name("pl1"); name != "Road Trip" {
			t.Errorf("remote name = %q, want Road Trip", name)
		}
		if !strings.Contains(m.status, "Saved") {
			t.Errorf("status = %q", m.status)
		}

		if _, cmd := m.Update(runes("s")); cmd != nil {
			t.Error("second save should not issue a command")
		}
		if !strings.Contains(m.status, "Already saved") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("reports failure and stays on list", func(t *testing.T) {
		api := tu.NewMockPlaylistAPI()
		api.CreateErr = shared.ErrAPIRequest
		m := NewModel(context.Background(), Opts{
			Generator: &fakeGenerator{result: sampleResult()},
			Saver:     playlist.NewAssembler(api, playlist.Opts{}),
		})
		generate(t, m)

		_, cmd := m.Update(runes("s"))
		m.Update(cmd())

		if m.Saved() {
			t.Error("result should not be saved")
		}
		if m.view != TrackListView {
			t.Errorf("view = %v, want TrackListView", m.view)
		}
		if !strings.Contains(m.status, "Save failed") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("without saver", func(t *testing.T) {
		m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: sampleResult()}})
		generate(t, m)

		if _, cmd := m.Update(runes("s")); cmd != nil {
			t.Error("expected no command")
		}
		if !strings.Contains(m.status, "not configured") {
			t.Errorf("status = %q", m.status)
		}
	})
}

func TestFeedback(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		action models.FeedbackAction
	}{
		{"more like this", "+", models.MoreLikeThis},
		{"less like this", "-", models.LessLikeThis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeFeedback{}
			m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: sampleResult()}, Feedback: fb})
			generate(t, m)

			_, cmd := m.Update(runes(tt.key))
			if cmd == nil {
				t.Fatal("expected feedback command")
			}
			m.Update(cmd())

			if len(fb.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(fb.calls))
			}
			if fb.calls[0].TrackID != "t1" || fb.calls[0].Action != tt.action {
				t.Errorf("call = %+v", fb.calls[0])
			}
			item := m.trackList.Items()[0].(trackItem)
			if item.feedback != tt.action {
				t.Errorf("item feedback = %q, want %q", item.feedback, tt.action)
			}
		})
	}

	t.Run("submit error", func(t *testing.T) {
		fb := &fakeFeedback{err: shared.ErrInvalidInput}
		m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: sampleResult()}, Feedback: fb})
		generate(t, m)

		_, cmd := m.Update(runes("+"))
		m.Update(cmd())
		if !strings.Contains(m.status, "Feedback failed") {
			t.Errorf("status = %q", m.status)
		}
	})
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), Opts{Generator: &fakeGenerator{result: sampleResult()}})
	generate(t, m)

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestTrackItem(t *testing.T) {
	item := trackItem{track: models.Track{Name: "One", Artist: "A", Album: "X", DurationMS: 185000}, position: 3}

	if got := item.Description(); got != "A • X • 3:05" {
		t.Errorf("description = %q", got)
	}
	if !strings.Contains(item.Title(), " 3. One") {
		t.Errorf("title = %q", item.Title())
	}
	if item.FilterValue() != "One A" {
		t.Errorf("filter value = %q", item.FilterValue())
	}
}
