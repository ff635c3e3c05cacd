package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackfx/internal/shared"
	"github.com/desertthunder/trackfx/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the database named by database.url and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path, err := shared.SQLitePath(r.config.Database.URL)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", path)

	db, err := shared.OpenDatabaseURL(r.config.Database.URL, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("%s\n", ui.Success("database ready at %s", path))
}

// SetupConfig writes a default config file. An existing file is never overwritten.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return fmt.Errorf("%w: --output", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s\n", ui.Success("config written to %s", path))
	return r.writePlain("%s\n", ui.Hint("set musicbrainz.user_agent and credentials.spotify.client_id before serving"))
}
