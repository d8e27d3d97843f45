package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/curator"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/planner"
	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/shared"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// IntentExtractor reads an intent out of a transcript.
type IntentExtractor interface {
	Extract(ctx context.Context, transcript string) (models.Intent, error)
}

// Catalog searches many queries at once.
type Catalog interface {
	SearchAll(ctx context.Context, queries []models.SearchQuery) ([]models.QueryResult, error)
}

// Assembler builds (and optionally persists) the final result.
type Assembler interface {
	Assemble(ctx context.Context, req playlist.Request) (*models.PlaylistResult, error)
}

// Options control a single run.
type Options struct {
	Persist bool   // create the playlist remotely
	Name    string // explicit playlist name
}

// EngineOpts wires an [Engine].
type EngineOpts struct {
	Transcriber          Transcriber
	Extractor            IntentExtractor
	Catalog              Catalog
	Assembler            Assembler
	Planner              planner.Options
	PlaylistLength       int
	TranscriptionTimeout time.Duration
	Logger               *log.Logger
}

// Engine runs the generation pipeline.
type Engine struct {
	opts   EngineOpts
	logger *log.Logger
}

// NewEngine creates an [Engine]. A nil transcriber disables [Engine.FromAudio].
func NewEngine(opts EngineOpts) *Engine {
	if opts.PlaylistLength <= 0 {
		opts.PlaylistLength = curator.DefaultTargetSize
	}
	return &Engine{opts: opts, logger: shared.DiscardLogger(opts.Logger)}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Transcribe runs only the transcription step.
func (e *Engine) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: no audio provided", shared.ErrEmptyInput)
	}
	if e.opts.Transcriber == nil {
		return "", fmt.Errorf("%w: no transcription service configured", shared.ErrTranscription)
	}

	callCtx := ctx
	if e.opts.TranscriptionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.TranscriptionTimeout)
		defer cancel()
	}

	text, err := e.opts.Transcriber.Transcribe(callCtx, audio, format)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: transcription took longer than %v", shared.ErrTimeout, e.opts.TranscriptionTimeout)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", shared.ErrTranscription)
	}
	return text, nil
}

// ParseIntent runs only the intent step.
func (e *Engine) ParseIntent(ctx context.Context, transcript string) (models.Intent, error) {
	if e.opts.Extractor == nil {
		if strings.TrimSpace(transcript) == "" {
			return models.Intent{}, fmt.Errorf("%w: transcript is blank", shared.ErrEmptyInput)
		}
		return models.FallbackIntent(strings.TrimSpace(transcript)), nil
	}
	return e.opts.Extractor.Extract(ctx, transcript)
}

// FromAudio transcribes audio and runs [Engine.FromText] on the transcript.
func (e *Engine) FromAudio(ctx context.Context, audio []byte, format string, opts Options, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	e.sendProgress(progress, transcribeUpdate(len(audio)))
	transcript, err := e.Transcribe(ctx, audio, format)
	if err != nil {
		return nil, err
	}
	return e.FromText(ctx, transcript, opts, progress)
}

// FromText runs the pipeline on a transcript.
func (e *Engine) FromText(ctx context.Context, transcript string, opts Options, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	logger := shared.WithLogger(e.logger, "request", shared.GenerateID())
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("%w: transcript is blank", shared.ErrEmptyInput)
	}
	if e.opts.Catalog == nil || e.opts.Assembler == nil {
		return nil, fmt.Errorf("%w: pipeline is not fully configured", shared.ErrUpstreamUnavailable)
	}

	e.sendProgress(progress, intentUpdate())
	intent, err := e.ParseIntent(ctx, transcript)
	if err != nil {
		return nil, err
	}
	logger.Debug("intent", "facets", intent.FacetMap())

	e.sendProgress(progress, planUpdate(intent))
	queries := planner.Plan(intent, e.opts.Planner)
	logger.Debug("planned queries", "count", len(queries))

	e.sendProgress(progress, searchUpdate(queries))
	results, err := e.opts.Catalog.SearchAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	if countTracks(results) == 0 && intent.HasFacets() {
		if q, ok := planner.Fallback(intent, len(queries), e.opts.Planner); ok && !planner.Contains(queries, q) {
			e.sendProgress(progress, fallbackUpdate(q))
			logger.Info("no tracks for planned queries, searching transcript", "query", q.Text)
			extra, err := e.opts.Catalog.SearchAll(ctx, []models.SearchQuery{q})
			if err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err == nil {
				queries = append(queries, q)
				results = append(results, extra...)
			}
		}
	}

	e.sendProgress(progress, curateUpdate(countTracks(results)))
	tracks := curator.Curate(results, e.opts.PlaylistLength)

	if opts.Persist {
		e.sendProgress(progress, createUpdate(len(tracks)))
	}
	result, err := e.opts.Assembler.Assemble(ctx, playlist.Request{
		Transcript: transcript,
		Intent:     intent,
		Queries:    queries,
		Tracks:     tracks,
		Persist:    opts.Persist,
		Name:       opts.Name,
	})
	if err != nil {
		logger.Error("playlist assembly failed", "error", err)
		return result, err
	}

	logger.Info("playlist ready", "tracks", result.TotalTracks, "persisted", result.Persisted())
	e.sendProgress(progress, doneUpdate(result))
	return result, nil
}

func countTracks(results []models.QueryResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Tracks)
	}
	return n
}
