package main

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/services"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	ctx := context.Background()
	logger := shared.NewLogger(nil)

	shared.LoadDotEnv()

	configPath := os.Getenv("DJX_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv(os.Getenv)
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	opts := RunnerOpts{Config: config, ConfigPath: configPath, Logger: logger}

	spotify := newSpotify(ctx, config, logger)
	if spotify != nil {
		opts.Spotify = spotify
	}
	if openai := newOpenAI(config, logger); openai != nil {
		opts.Language = openai
	}
	if db := openDatabase(config, logger); db != nil {
		defer db.Close()
		opts.DB = db
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "djx",
		Usage:    "Turn a spoken or typed request into a Spotify playlist",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err := app.Run(ctx, os.Args)

	if spotify != nil && spotify.UserAuthenticated() {
		persistRefreshedToken(runner, spotify, logger)
	}

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newSpotify returns a user-authenticated client when tokens are stored, an app-only client when only client
// credentials are set, or nil.
func newSpotify(ctx context.Context, config *shared.Config, logger *log.Logger) *services.SpotifyService {
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		logger.Debug("spotify credentials not set")
		return nil
	}

	svc, err := services.NewSpotifyService(creds.Map(), logger)
	if err != nil {
		logger.Warn("failed to create spotify service", "error", err)
		return nil
	}

	if err := svc.Authenticate(ctx, creds.Token()); err != nil {
		logger.Debug("no spotify user token, searching with app credentials", "error", err)
		svc.AuthenticateApp(ctx)
	}
	return svc
}

func newOpenAI(config *shared.Config, logger *log.Logger) *services.OpenAIService {
	creds := config.Credentials.OpenAI
	svc, err := services.NewOpenAIService(services.OpenAIOpts{
		APIKey:             creds.APIKey,
		BaseURL:            creds.BaseURL,
		ChatModel:          creds.ChatModel,
		TranscriptionModel: creds.TranscriptionModel,
		Temperature:        creds.Temperature,
		Logger:             logger,
	})
	if err != nil {
		logger.Debug("openai disabled", "error", err)
		return nil
	}
	return svc
}

// openDatabase opens the history database created by `djx setup` and brings its schema up to date.
// A missing file or any failure leaves history disabled.
func openDatabase(config *shared.Config, logger *log.Logger) *sql.DB {
	path := config.Database.Path
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil && path != ":memory:" {
		logger.Debug("history database not found", "path", path)
		return nil
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		logger.Warn("history disabled", "error", err)
		return nil
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		logger.Warn("history disabled", "error", err)
		db.Close()
		return nil
	}
	return db
}

// persistRefreshedToken writes the user token back to the config file when the oauth2 client refreshed it.
func persistRefreshedToken(r *Runner, spotify *services.SpotifyService, logger *log.Logger) {
	token, err := spotify.Token()
	if err != nil || token == nil {
		return
	}
	if token.AccessToken == r.config.Credentials.Spotify.AccessToken {
		return
	}
	if _, err := os.Stat(r.configPath); err != nil {
		return
	}
	if err := r.saveTokens(token); err != nil {
		logger.Warn("failed to persist refreshed spotify token", "error", err)
	}
}
