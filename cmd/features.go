package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/trackfx/internal/formatter"
	"github.com/desertthunder/trackfx/internal/shared"
	"github.com/desertthunder/trackfx/internal/ui"
	"github.com/urfave/cli/v3"
)

const formatPretty = "pretty"

// FeaturesISRC prints the ISRC of a Spotify track.
func (r *Runner) FeaturesISRC(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	isrc, ok, err := s.resolver.ISRCForTrack(ctx, cmd.String("token"), cmd.String("track"))
	if err != nil {
		return err
	}
	if !ok {
		return r.writePlain("%s\n", ui.Warning("no ISRC found for track %s", cmd.String("track")))
	}
	return r.writePlain("%s\n", isrc)
}

// FeaturesTrack resolves a Spotify track through every stage.
func (r *Runner) FeaturesTrack(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.resolver.ResolveTrack(ctx, cmd.String("token"), cmd.String("track"))
	if err != nil {
		return err
	}

	switch format := strings.ToLower(cmd.String("format")); format {
	case formatPretty:
		return r.writePlain("%s\n", ui.Resolution(res))
	case formatter.FormatText:
		return r.writeBytes(formatter.ResolutionToText(res))
	case formatter.FormatJSON:
		return r.writeJSON(res, true)
	default:
		return fmt.Errorf("%w: format %q is not supported for tracks", shared.ErrInvalidArgument, format)
	}
}

// FeaturesMBID prints the MusicBrainz recording id of an ISRC.
func (r *Runner) FeaturesMBID(ctx context.Context, cmd *cli.Command) error {
	isrc := cmd.StringArg("isrc")
	if strings.TrimSpace(isrc) == "" {
		return fmt.Errorf("%w: isrc", shared.ErrMissingArgument)
	}

	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	mbid, ok, err := s.resolver.MBIDForISRC(ctx, isrc)
	if err != nil {
		return err
	}
	if !ok {
		return r.writePlain("%s\n", ui.Warning("no recording found for ISRC %s", isrc))
	}
	return r.writePlain("%s\n", mbid)
}

// FeaturesRecording renders the features of a MusicBrainz recording.
func (r *Runner) FeaturesRecording(ctx context.Context, cmd *cli.Command) error {
	mbid := cmd.StringArg("mbid")
	if strings.TrimSpace(mbid) == "" {
		return fmt.Errorf("%w: mbid", shared.ErrMissingArgument)
	}

	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")
	if format == formatPretty && output != "" {
		format = formatter.FormatMarkdown
	}

	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	features, ok, err := s.resolver.FeaturesForMBID(ctx, mbid)
	if err != nil {
		return err
	}
	if !ok {
		return r.writePlain("%s\n", ui.Warning("no features found for recording %s", mbid))
	}

	if format == formatPretty {
		return r.writePlain("%s\n", ui.Features(features))
	}

	data, err := formatter.Render(features, format)
	if err != nil {
		return err
	}
	if output == "" {
		return r.writeBytes(data)
	}

	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("features written to %s", output))
}
