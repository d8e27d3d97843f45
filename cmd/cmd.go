// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/djx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func outputFlags(defaultFormat string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: " + joinFormats(),
			Value:   defaultFormat,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON (same as --output json)",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func joinFormats() string {
	return strings.Join(formatter.Formats, ", ")
}

// setupCommand handles first-run setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand runs the Spotify authorization code flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize djx to manage your Spotify playlists",
		Action: r.Auth,
	}
}

// generateCommand runs the full pipeline.
func generateCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "text",
			Aliases: []string{"t"},
			Usage:   "Describe the playlist you want",
		},
		&cli.StringFlag{
			Name:    "audio",
			Aliases: []string{"a"},
			Usage:   "Path to a recorded request",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Audio container format (defaults to the file extension)",
		},
		&cli.BoolFlag{
			Name:    "save",
			Aliases: []string{"s"},
			Usage:   "Create the playlist on Spotify",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Playlist name (generated from the request when empty)",
		},
		&cli.StringFlag{
			Name:  "export",
			Usage: "Write the rendered output to this path instead of stdout (csv and markdown write a file set)",
		},
	}

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Build a playlist from a typed or spoken request",
		Flags:   append(flags, outputFlags("text")...),
		Action:  r.Generate,
	}
}

func transcribeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transcribe",
		Usage: "Transcribe a recorded request",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Audio container format (defaults to the file extension)",
			},
		},
		Action: r.Transcribe,
	}
}

func intentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "intent",
		Usage: "Show the parsed intent and planned searches for a request",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "text"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
		},
		Action: r.Intent,
	}
}

func renameCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rename",
		Usage: "Rename a playlist djx created",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
			&cli.StringArg{Name: "name"},
		},
		Action: r.Rename,
	}
}

func removeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a playlist djx created",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Action: r.Remove,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List playlists saved from this machine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to list",
				Value: 20,
			},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
		},
		Action: r.History,
	}
}

func feedbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feedback",
		Usage: "Record more-like-this or less-like-this feedback for a track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "track",
				Usage:    "Spotify track id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "action",
				Usage:    "more_like_this (more, +) or less_like_this (less, -)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist the track came from",
			},
		},
		Action: r.Feedback,
	}
}

func refineCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "refine",
		Usage: "Send a refinement request for an existing playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "text"},
		},
		Action: r.Refine,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Interface to bind (defaults to server.host)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (defaults to server.port)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive previews.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Preview a generated playlist, save it and leave feedback interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "text",
				Aliases:  []string{"t"},
				Usage:    "Describe the playlist you want",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name used when saving",
			},
		},
		Action: r.TUI,
	}
}
