package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/catalog"
	"github.com/desertthunder/djx/internal/feedback"
	"github.com/desertthunder/djx/internal/intent"
	"github.com/desertthunder/djx/internal/planner"
	"github.com/desertthunder/djx/internal/playlist"
	"github.com/desertthunder/djx/internal/repositories"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SpotifyClient is the catalog and playlist surface of the Spotify service.
type SpotifyClient interface {
	catalog.Searcher
	playlist.API
}

// LanguageService infers intents and transcribes audio.
type LanguageService interface {
	intent.Model
	tasks.Transcriber
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    SpotifyClient
	language   LanguageService
	db         *sql.DB
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
	assembler  *playlist.Assembler
	intake     *feedback.Intake
	history    *repositories.HistoryRepository
	feedback   *repositories.FeedbackRepository
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Spotify, Language and DB are optional; commands that need a missing one fail with a descriptive error.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    SpotifyClient
	Language   LanguageService
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		language:   opts.Language,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.wire()
	return r
}

// wire builds the pipeline from the runner's collaborators and config.
func (r *Runner) wire() {
	cfg := r.config
	var (
		searcher    catalog.Searcher
		api         playlist.API
		model       intent.Model
		transcriber tasks.Transcriber
	)
	if r.spotify != nil {
		searcher, api = r.spotify, r.spotify
	}
	if r.language != nil {
		model, transcriber = r.language, r.language
	}

	r.assembler = playlist.NewAssembler(api, playlist.Opts{
		Public:  cfg.Pipeline.Public,
		Timeout: cfg.Timeouts.Playlist.Duration,
		Logger:  r.logger,
	})

	r.engine = tasks.NewEngine(tasks.EngineOpts{
		Transcriber: transcriber,
		Extractor:   intent.NewExtractor(model, cfg.Timeouts.Intent.Duration, r.logger),
		Catalog: catalog.NewAdapter(searcher, catalog.Opts{
			Limit:     cfg.Pipeline.SearchLimit,
			Workers:   cfg.Pipeline.Workers,
			RateLimit: cfg.Pipeline.RateLimit,
			Timeout:   cfg.Timeouts.Search.Duration,
			Logger:    r.logger,
		}),
		Assembler:            r.assembler,
		Planner:              r.plannerOpts(),
		PlaylistLength:       cfg.Pipeline.PlaylistLength,
		TranscriptionTimeout: cfg.Timeouts.Transcription.Duration,
		Logger:               r.logger,
	})

	sinks := []feedback.Sink{feedback.LogSink{Logger: r.logger}}
	if r.db != nil {
		r.history = repositories.NewHistoryRepository(r.db)
		r.feedback = repositories.NewFeedbackRepository(r.db)
		sinks = append(sinks, r.feedback)
	}
	r.intake = feedback.NewIntake(r.logger, sinks...)
}

func (r *Runner) plannerOpts() planner.Options {
	return planner.Options{
		MaxQueries: r.config.Pipeline.MaxQueries,
		MaxLength:  r.config.Pipeline.MaxQueryLength,
	}
}

// SetLogger swaps the logger and rewires every component that holds it.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.wire()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, generateCommand, transcribeCommand, intentCommand,
		renameCommand, removeCommand, historyCommand, feedbackCommand, refineCommand,
		serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
