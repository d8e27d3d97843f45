package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/planner"
	"github.com/desertthunder/djx/internal/services"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
)

// Version is reported by GET /.
var Version = "dev"

// maxBodyBytes leaves room for base64 encoded audio at the transcription size limit.
const maxBodyBytes = services.MaxAudioBytes/3*4 + 1<<20

// Pipeline is the generation engine as seen by the API.
type Pipeline interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
	ParseIntent(ctx context.Context, transcript string) (models.Intent, error)
	FromText(ctx context.Context, transcript string, opts tasks.Options, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
	FromAudio(ctx context.Context, audio []byte, format string, opts tasks.Options, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
}

// Playlists manages playlists that already exist remotely.
type Playlists interface {
	Rename(ctx context.Context, id, name string) error
	Remove(ctx context.Context, id string) error
}

// FeedbackIntake accepts track feedback.
type FeedbackIntake interface {
	Submit(ctx context.Context, trackID string, action models.FeedbackAction, playlistID string) (*models.Feedback, error)
}

// APIOpts wires an [API].
type APIOpts struct {
	Pipeline  Pipeline
	Playlists Playlists
	Feedback  FeedbackIntake
	Planner   planner.Options
	Logger    *log.Logger
	Now       func() time.Time
}

// API serves the djx HTTP endpoints.
type API struct {
	opts   APIOpts
	logger *log.Logger
}

func NewAPI(opts APIOpts) *API {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{opts: opts, logger: shared.DiscardLogger(opts.Logger)}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.Root))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
	r.Handle(http.MethodPost, "/transcribe", http.HandlerFunc(a.Transcribe))
	r.Handle(http.MethodPost, "/parse_intent", http.HandlerFunc(a.ParseIntent))
	r.Handle(http.MethodPost, "/generate_playlist", http.HandlerFunc(a.GeneratePlaylist))
	r.Handle(http.MethodPost, "/process_audio_recording", http.HandlerFunc(a.ProcessAudioRecording))
	r.Handle(http.MethodPut, "/playlists/{id}", http.HandlerFunc(a.RenamePlaylist))
	r.Handle(http.MethodDelete, "/playlists/{id}", http.HandlerFunc(a.RemovePlaylist))
	r.Handle(http.MethodPost, "/feedback", http.HandlerFunc(a.SubmitFeedback))
	r.Handle(http.MethodPost, "/refine", http.HandlerFunc(a.Refine))
}

// NewHandler builds a router with the standard middleware and every API route.
func NewHandler(api *API, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(RequestID(), Logging(logger), Recover(logger))
	api.Register(r)
	return r
}

type transcribeRequest struct {
	AudioData   string `json:"audio_data"`
	AudioFormat string `json:"audio_format"`
}

type transcribeResponse struct {
	Transcript string         `json:"transcript"`
	Metadata   map[string]any `json:"metadata"`
}

type parseIntentRequest struct {
	Transcript string `json:"transcript"`
}

type parseIntentResponse struct {
	Transcript string               `json:"transcript"`
	Intent     models.Intent        `json:"parsed_intent"`
	Queries    []models.SearchQuery `json:"search_queries"`
}

type generateRequest struct {
	Transcript     string `json:"transcript"`
	CreatePlaylist *bool  `json:"create_playlist"`
	Name           string `json:"name"`
}

type audioRecordingRequest struct {
	AudioData      string `json:"audio_data"`
	AudioFormat    string `json:"audio_format"`
	CreatePlaylist *bool  `json:"create_playlist"`
	Name           string `json:"name"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type feedbackRequest struct {
	TrackID    string `json:"track_id"`
	Action     string `json:"action"`
	PlaylistID string `json:"playlist_id"`
}

// partialResponse is a result whose persistence failed.
type partialResponse struct {
	*models.PlaylistResult
	Error string `json:"error"`
}

// Root handles GET /.
func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "djx",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"POST /transcribe",
			"POST /parse_intent",
			"POST /generate_playlist",
			"POST /process_audio_recording",
			"PUT /playlists/{id}",
			"DELETE /playlists/{id}",
			"POST /feedback",
			"POST /refine",
		},
	})
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": a.opts.Now().UTC().Format(time.RFC3339),
		"services": map[string]bool{
			"pipeline":  a.opts.Pipeline != nil,
			"playlists": a.opts.Playlists != nil,
			"feedback":  a.opts.Feedback != nil,
		},
	})
}

// Transcribe handles POST /transcribe.
func (a *API) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Pipeline != nil) {
		return
	}
	audio, err := decodeAudio(req.AudioData)
	if err != nil {
		writeErr(w, err)
		return
	}
	format := services.NormalizeAudioFormat(req.AudioFormat)

	text, err := a.opts.Pipeline.Transcribe(r.Context(), audio, format)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Transcript: text,
		Metadata:   map[string]any{"audio_format": format, "audio_bytes": len(audio)},
	})
}

// ParseIntent handles POST /parse_intent.
func (a *API) ParseIntent(w http.ResponseWriter, r *http.Request) {
	var req parseIntentRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Pipeline != nil) {
		return
	}
	intent, err := a.opts.Pipeline.ParseIntent(r.Context(), req.Transcript)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parseIntentResponse{
		Transcript: strings.TrimSpace(req.Transcript),
		Intent:     intent,
		Queries:    planner.Plan(intent, a.opts.Planner),
	})
}

// GeneratePlaylist handles POST /generate_playlist. create_playlist defaults to true.
func (a *API) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Pipeline != nil) {
		return
	}
	opts := tasks.Options{Persist: boolOr(req.CreatePlaylist, true), Name: req.Name}
	result, err := a.opts.Pipeline.FromText(r.Context(), req.Transcript, opts, nil)
	a.writeResult(w, result, err)
}

// ProcessAudioRecording handles POST /process_audio_recording.
func (a *API) ProcessAudioRecording(w http.ResponseWriter, r *http.Request) {
	var req audioRecordingRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Pipeline != nil) {
		return
	}
	audio, err := decodeAudio(req.AudioData)
	if err != nil {
		writeErr(w, err)
		return
	}
	opts := tasks.Options{Persist: boolOr(req.CreatePlaylist, true), Name: req.Name}
	result, err := a.opts.Pipeline.FromAudio(r.Context(), audio, services.NormalizeAudioFormat(req.AudioFormat), opts, nil)
	a.writeResult(w, result, err)
}

// RenamePlaylist handles PUT /playlists/{id}.
func (a *API) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Playlists != nil) {
		return
	}
	id := r.PathValue("id")
	if err := a.opts.Playlists.Rename(r.Context(), id, req.Name); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed", "playlist_id": id, "name": strings.TrimSpace(req.Name)})
}

// RemovePlaylist handles DELETE /playlists/{id}.
func (a *API) RemovePlaylist(w http.ResponseWriter, r *http.Request) {
	if !a.ready(w, a.opts.Playlists != nil) {
		return
	}
	id := r.PathValue("id")
	if err := a.opts.Playlists.Remove(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "playlist_id": id})
}

// SubmitFeedback handles POST /feedback.
func (a *API) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !a.bind(w, r, &req) || !a.ready(w, a.opts.Feedback != nil) {
		return
	}
	fb, err := a.opts.Feedback.Submit(r.Context(), req.TrackID, models.FeedbackAction(req.Action), req.PlaylistID)
	if fb == nil {
		writeErr(w, err)
		return
	}
	if err != nil {
		a.logger.Warn("feedback stored partially", "id", fb.ID, "error", err)
	}
	writeJSON(w, http.StatusAccepted, fb)
}

// Refine handles POST /refine. Requests are acknowledged and otherwise ignored.
func (a *API) Refine(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) writeResult(w http.ResponseWriter, result *models.PlaylistResult, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case result != nil && errors.Is(err, shared.ErrPlaylistPersistence):
		a.logger.Warn("returning unsaved playlist", "error", err)
		writeJSON(w, http.StatusMultiStatus, partialResponse{PlaylistResult: result, Error: err.Error()})
	default:
		writeErr(w, err)
	}
}

func (a *API) ready(w http.ResponseWriter, ok bool) bool {
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "service not configured")
	}
	return ok
}

// bind decodes a JSON or form body into dst. Form values "true" and "false" become booleans.
func (a *API) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		err = bindForm(r, dst)
	default:
		err = json.NewDecoder(r.Body).Decode(dst)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func bindForm(r *http.Request, dst any) error {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	values := make(map[string]any, len(r.Form))
	for key := range r.Form {
		switch v := r.Form.Get(key); v {
		case "true", "false":
			values[key] = v == "true"
		default:
			values[key] = v
		}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// decodeAudio accepts plain or data-URL base64.
func decodeAudio(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("%w: audio_data is required", shared.ErrEmptyInput)
	}
	if strings.HasPrefix(data, "data:") {
		if _, rest, ok := strings.Cut(data, ","); ok {
			data = rest
		}
	}
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: audio_data is not valid base64", shared.ErrInvalidInput)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio_data decodes to nothing", shared.ErrEmptyInput)
	}
	return audio, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
