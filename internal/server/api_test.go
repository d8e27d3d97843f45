package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
	tu "github.com/desertthunder/djx/internal/testing"
)

type fakePipeline struct {
	transcript string
	intent     models.Intent
	result     *models.PlaylistResult
	err        error
	gotOpts    tasks.Options
	gotAudio   []byte
	gotFormat  string
	gotText    string
}

func (f *fakePipeline) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	f.gotAudio, f.gotFormat = audio, format
	return f.transcript, f.err
}

func (f *fakePipeline) ParseIntent(ctx context.Context, transcript string) (models.Intent, error) {
	f.gotText = transcript
	if strings.TrimSpace(transcript) == "" {
		return models.Intent{}, shared.ErrEmptyInput
	}
	return f.intent, f.err
}

func (f *fakePipeline) FromText(ctx context.Context, transcript string, opts tasks.Options, _ chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error) {
	f.gotText, f.gotOpts = transcript, opts
	return f.result, f.err
}

func (f *fakePipeline) FromAudio(ctx context.Context, audio []byte, format string, opts tasks.Options, _ chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error) {
	f.gotAudio, f.gotFormat, f.gotOpts = audio, format, opts
	return f.result, f.err
}

type fakeFeedback struct{ err error }

func (f fakeFeedback) Submit(ctx context.Context, trackID string, action models.FeedbackAction, playlistID string) (*models.Feedback, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Feedback{ID: "fb1", TrackID: trackID, Action: action, PlaylistID: playlistID}, nil
}

func sampleResult() *models.PlaylistResult {
	return &models.PlaylistResult{
		Transcript:   "chill beats",
		Intent:       models.Intent{Mood: "chill", Fallback: "chill beats"},
		Tracks:       []models.Track{{ID: "t1", Name: "One"}},
		PlaylistName: "Chill Vibes",
		TotalTracks:  1,
		GeneratedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(p Pipeline, pl Playlists, fb FeedbackIntake) http.Handler {
	api := NewAPI(APIOpts{
		Pipeline:  p,
		Playlists: pl,
		Feedback:  fb,
		Now:       func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return NewHandler(api, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRootAndHealth(t *testing.T) {
	h := newTestHandler(&fakePipeline{}, nil, nil)

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["name"] != "djx" {
		t.Errorf("unexpected root response %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/health", nil)
	body := decode(t, rec)
	if body["status"] != "healthy" || body["timestamp"] != "2025-01-01T00:00:00Z" {
		t.Errorf("unexpected health body %v", body)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected request id header")
	}

	if rec := do(t, h, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/health", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestTranscribe(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("RIFFdata"))

	t.Run("success", func(t *testing.T) {
		p := &fakePipeline{transcript: "hello"}
		rec := do(t, newTestHandler(p, nil, nil), http.MethodPost, "/transcribe", map[string]string{"audio_data": audio, "audio_format": "WAV"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
		}
		if decode(t, rec)["transcript"] != "hello" || string(p.gotAudio) != "RIFFdata" || p.gotFormat != "wav" {
			t.Errorf("unexpected call %q %q", p.gotAudio, p.gotFormat)
		}
	})

	t.Run("data url", func(t *testing.T) {
		p := &fakePipeline{transcript: "hello"}
		rec := do(t, newTestHandler(p, nil, nil), http.MethodPost, "/transcribe", map[string]string{"audio_data": "data:audio/webm;base64," + audio})
		if rec.Code != http.StatusOK || p.gotFormat != "webm" {
			t.Errorf("expected 200 with default format, got %d %q", rec.Code, p.gotFormat)
		}
	})

	tests := []struct {
		name string
		body any
		err  error
		want int
	}{
		{"missing audio", map[string]string{}, nil, http.StatusBadRequest},
		{"bad base64", map[string]string{"audio_data": "!!!"}, nil, http.StatusBadRequest},
		{"upstream failure", map[string]string{"audio_data": audio}, fmt.Errorf("%w: boom", shared.ErrTranscription), http.StatusUnprocessableEntity},
		{"timeout", map[string]string{"audio_data": audio}, shared.ErrTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestHandler(&fakePipeline{err: tt.err}, nil, nil), http.MethodPost, "/transcribe", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestParseIntent(t *testing.T) {
	p := &fakePipeline{intent: models.Intent{Genre: "jazz", Era: "60s", Fallback: "60s jazz"}}
	h := newTestHandler(p, nil, nil)

	rec := do(t, h, http.MethodPost, "/parse_intent", map[string]string{"transcript": "60s jazz"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body parseIntentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Intent.Genre != "jazz" || len(body.Queries) == 0 || body.Queries[0].Text != "jazz 60s" {
		t.Errorf("unexpected body %+v", body)
	}

	if rec := do(t, h, http.MethodPost, "/parse_intent", map[string]string{"transcript": " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank transcript, got %d", rec.Code)
	}
}

func TestGeneratePlaylist(t *testing.T) {
	t.Run("json body defaults to creating a playlist", func(t *testing.T) {
		p := &fakePipeline{result: sampleResult()}
		rec := do(t, newTestHandler(p, nil, nil), http.MethodPost, "/generate_playlist", map[string]string{"transcript": "chill beats"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !p.gotOpts.Persist || p.gotText != "chill beats" {
			t.Errorf("unexpected call %+v %q", p.gotOpts, p.gotText)
		}
		if decode(t, rec)["playlist_name"] != "Chill Vibes" {
			t.Errorf("unexpected body %s", rec.Body)
		}
	})

	t.Run("form body", func(t *testing.T) {
		p := &fakePipeline{result: sampleResult()}
		form := url.Values{"transcript": {"chill beats"}, "create_playlist": {"false"}, "name": {"Mine"}}
		req := httptest.NewRequest(http.MethodPost, "/generate_playlist", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		newTestHandler(p, nil, nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
		}
		if p.gotOpts.Persist || p.gotOpts.Name != "Mine" {
			t.Errorf("unexpected options %+v", p.gotOpts)
		}
	})

	t.Run("persistence failure is a partial success", func(t *testing.T) {
		perr := &playlist.PersistenceError{Stage: "create", Err: shared.ErrNotAuthenticated}
		p := &fakePipeline{result: sampleResult(), err: perr}
		rec := do(t, newTestHandler(p, nil, nil), http.MethodPost, "/generate_playlist", map[string]any{"transcript": "x", "create_playlist": true})
		if rec.Code != http.StatusMultiStatus {
			t.Fatalf("expected 207, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["error"] == "" || body["total_tracks"] != float64(1) {
			t.Errorf("expected result with error, got %v", body)
		}
	})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty transcript", shared.ErrEmptyInput, http.StatusBadRequest},
		{"catalog down", shared.ErrUpstreamUnavailable, http.StatusBadGateway},
		{"intent timeout", shared.ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestHandler(&fakePipeline{err: tt.err}, nil, nil), http.MethodPost, "/generate_playlist", map[string]string{"transcript": "x"})
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate_playlist", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		newTestHandler(&fakePipeline{}, nil, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("no pipeline", func(t *testing.T) {
		rec := do(t, newTestHandler(nil, nil, nil), http.MethodPost, "/generate_playlist", map[string]string{"transcript": "x"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestProcessAudioRecording(t *testing.T) {
	p := &fakePipeline{result: sampleResult()}
	body := map[string]any{
		"audio_data":      base64.StdEncoding.EncodeToString([]byte("audio")),
		"audio_format":    "mp3",
		"create_playlist": false,
	}
	rec := do(t, newTestHandler(p, nil, nil), http.MethodPost, "/process_audio_recording", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
	}
	if p.gotFormat != "mp3" || p.gotOpts.Persist || string(p.gotAudio) != "audio" {
		t.Errorf("unexpected call %q %+v", p.gotFormat, p.gotOpts)
	}
}

func TestPlaylistRoutes(t *testing.T) {
	api := tu.NewMockPlaylistAPI()
	api.Seed("abc", "Old")
	h := newTestHandler(nil, playlist.NewAssembler(api, playlist.Opts{}), nil)

	for range 2 {
		rec := do(t, h, http.MethodPut, "/playlists/abc", map[string]string{"name": "New"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
		}
	}
	if name, _ := api.Name("abc"); name != "New" {
		t.Errorf("expected rename, got %q", name)
	}

	if rec := do(t, h, http.MethodPut, "/playlists/abc", map[string]string{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/playlists/zzz", map[string]string{"name": "x"}); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/playlists/abc", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/playlists/abc", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestFeedbackAndRefine(t *testing.T) {
	h := newTestHandler(nil, nil, fakeFeedback{})

	rec := do(t, h, http.MethodPost, "/feedback", map[string]string{"track_id": "t1", "action": "more_like_this"})
	if rec.Code != http.StatusAccepted || decode(t, rec)["id"] != "fb1" {
		t.Errorf("unexpected feedback response %d %s", rec.Code, rec.Body)
	}

	bad := newTestHandler(nil, nil, fakeFeedback{err: shared.ErrInvalidInput})
	if rec := do(t, bad, http.MethodPost, "/feedback", map[string]string{"track_id": "t1", "action": "meh"}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/refine", map[string]string{"anything": "goes"})
	if rec.Code != http.StatusAccepted || decode(t, rec)["status"] != "accepted" {
		t.Errorf("unexpected refine response %d %s", rec.Code, rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{shared.ErrTranscription, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{shared.ErrRateLimit, http.StatusBadGateway},
		{&playlist.PersistenceError{Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
