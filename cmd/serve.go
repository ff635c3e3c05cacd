package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/trackfx/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = int(port)
	}

	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := r.config.Credentials.Spotify.Validate(); err != nil {
		r.logger.Warn("spotify login is disabled", "error", err)
	}
	if r.config.MusicBrainz.UserAgent == "" {
		r.logger.Warn("musicbrainz lookups are disabled until a user agent is configured")
	}

	router := server.NewRouter(server.Dependencies{
		Config:    r.config,
		Exchanger: s.oauth,
		Tokens:    s.tokens,
		Sessions:  s.sessions,
		Resolver:  s.resolver,
		Logger:    r.logger,
	})

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(addr, router, r.logger).Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
