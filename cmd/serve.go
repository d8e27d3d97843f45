package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/djx/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg.Addr(), r.apiHandler())
	if err := server.ListenAndServe(ctx, srv, r.logger); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (r *Runner) apiHandler() *server.BasicRouter {
	api := server.NewAPI(server.APIOpts{
		Pipeline:  r.engine,
		Playlists: r.assembler,
		Feedback:  r.intake,
		Planner:   r.plannerOpts(),
		Logger:    r.logger,
	})
	return server.NewHandler(api, r.logger)
}
