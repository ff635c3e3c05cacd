package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/repositories"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
	"github.com/desertthunder/trackfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	lookupEnv  func(string) (string, bool)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	LookupEnv  func(string) (string, bool)
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		lookupEnv:  opts.LookupEnv,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, featuresCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stack is the set of collaborators a command works with. Close releases the database.
type stack struct {
	db          *sql.DB
	cache       *repositories.FeatureCache
	tokens      *repositories.SessionRepository
	spotify     *services.SpotifyClient
	musicbrainz *services.MusicBrainzClient
	oauth       *services.OAuthRefresher
	sessions    *services.SessionClient
	resolver    *tasks.Resolver
}

// open connects to the configured database and builds the clients and resolver around it.
func (r *Runner) open() (*stack, error) {
	cfg := r.config

	db, err := shared.OpenDatabaseURL(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	spotifyCfg, mbCfg := cfg.Credentials.Spotify, cfg.MusicBrainz
	s := &stack{
		db:     db,
		cache:  repositories.NewFeatureCache(db, cfg.Cache.ErrorBackoff),
		tokens: repositories.NewSessionRepository(db),
		spotify: services.NewSpotifyClient(
			spotifyCfg.APIBaseURL, r.clientWithTimeout(spotifyCfg.Timeout), r.logger,
		),
		musicbrainz: services.NewMusicBrainzClient(
			mbCfg.BaseURL, mbCfg.UserAgent, r.clientWithTimeout(mbCfg.Timeout),
			services.NewThrottle(mbCfg.MinInterval), r.logger,
		),
		oauth: services.NewOAuthRefresher(
			services.NewOAuthConfig(spotifyCfg), r.clientWithTimeout(spotifyCfg.Timeout),
		),
	}
	s.sessions = services.NewSessionClient(s.spotify, s.tokens, s.oauth, r.logger)
	s.resolver = tasks.NewResolver(s.cache, s.spotify, s.sessions, s.musicbrainz, cfg.Cache, r.logger)
	return s, nil
}

func (s *stack) Close() error {
	return s.db.Close()
}

// clientWithTimeout copies the runner's client with a request timeout. Zero keeps the client's own.
func (r *Runner) clientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return r.httpClient
	}
	c := *r.httpClient
	c.Timeout = timeout
	return &c
}

// loadConfig reads the config file when present and applies environment overrides.
func (r *Runner) loadConfig(path string) error {
	if path != "" {
		r.configPath = path
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return err
			}
			r.config = config
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	r.config.ApplyEnv(r.lookupEnv)
	return nil
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

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
