// submodule cmd contains command definitions
package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/formatter"
	"github.com/desertthunder/trackfx/internal/repositories"
	"github.com/desertthunder/trackfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// app builds the root command. The config file and log level are applied before any subcommand runs.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "trackfx",
		Usage:   "Resolve Spotify tracks to MusicBrainz recordings, tags and genres",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(r.logger, log.DebugLevel)
			}
			return ctx, r.loadConfig(cmd.String("config"))
		},
		Commands: r.register(),
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the feature store database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the config file to create (default: --config)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// featuresCommand runs single stages of the resolution chain
func featuresCommand(r *Runner) *cli.Command {
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: pretty, " + strings.Join(formatter.Formats, ", "),
			Value:   formatPretty,
		}
	}

	return &cli.Command{
		Name:  "features",
		Usage: "Resolve tracks, ISRCs and recordings through the feature cache",
		Commands: []*cli.Command{
			{
				Name:  "isrc",
				Usage: "Resolve a Spotify track id to its ISRC",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Spotify access token",
						Sources:  cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Spotify track id",
						Required: true,
					},
				},
				Action: r.FeaturesISRC,
			},
			{
				Name:  "track",
				Usage: "Run the full chain for a Spotify track",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Spotify access token",
						Sources:  cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "track",
						Usage:    "Spotify track id",
						Required: true,
					},
					formatFlag(),
				},
				Action: r.FeaturesTrack,
			},
			{
				Name:  "mbid",
				Usage: "Resolve an ISRC to a MusicBrainz recording id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "isrc"},
				},
				Action: r.FeaturesMBID,
			},
			{
				Name:  "recording",
				Usage: "Show the tags, genres and metadata of a MusicBrainz recording",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mbid"},
				},
				Flags: []cli.Flag{
					formatFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the rendered output to a file",
					},
				},
				Action: r.FeaturesRecording,
			},
		},
	}
}

// cacheCommand inspects the feature cache
func cacheCommand(r *Runner) *cli.Command {
	tables := make([]string, 0, 3)
	for _, t := range repositories.Tables() {
		tables = append(tables, t.Name)
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the feature cache",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print a cached row with its expiry and backoff",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Aliases:  []string{"t"},
						Usage:    "Cache table: " + strings.Join(tables, ", "),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Row key",
						Required: true,
					},
				},
				Action: r.CacheShow,
			},
		},
	}
}
