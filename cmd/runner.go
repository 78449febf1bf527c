package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and remote clients are opened lazily by [Runner.open] so commands that only touch
// configuration never create a database.
type Runner struct {
	config       *shared.Config
	configPath   string
	configLoaded bool
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	input        io.Reader

	db          *sql.DB
	managements *repositories.ManagementRepository
	playlists   *repositories.PlaylistRepository
	events      *repositories.EventRepository
	remote      *services.SpotifyClient
	topTracks   *services.TopTracksSource
	engine      *tasks.Synchronizer
	cacher      *tasks.Cacher
	library     *tasks.Library
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // skips loading ConfigPath when set
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		configLoaded: loaded,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		input:        opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, mostPlayedCommand, jointCommand, cacheCommand, libraryCommand, managedCommand, eventsCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration file named by --config and applies the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if !r.configLoaded && r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
			r.configLoaded = true
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	level := r.config.Log.ParsedLevel()
	if name := cmd.String("log-level"); name != "" {
		parsed, err := log.ParseLevel(name)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		level = parsed
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// after releases anything [Runner.open] acquired.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// open builds storage, remote clients and the engine on first use.
func (r *Runner) open() error {
	if r.engine != nil {
		return nil
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: r.config.Spotify.Timeout()}
	}

	r.db = db
	r.managements = repositories.NewManagementRepository(db)
	r.playlists = repositories.NewPlaylistRepository(db)
	r.events = repositories.NewEventRepository(db)
	r.remote = services.NewSpotifyClient(r.config.Spotify.BaseURL, httpClient, shared.WithLogger(r.logger, "component", "spotify"))
	r.topTracks = services.NewTopTracksSource(r.config.Spotify.BaseURL, httpClient, shared.WithLogger(r.logger, "component", "top_tracks"))

	r.engine = tasks.NewSynchronizer(tasks.Options{
		Remote:              r.remote,
		Managements:         r.managements,
		Cache:               r.playlists,
		Events:              r.events,
		MaxTracksPerRequest: r.config.Sync.MaxTracksPerRequest,
		PageSize:            r.config.Sync.PageSize,
		RequestsPerSecond:   r.config.Sync.RequestsPerSecond,
		Logger:              shared.WithLogger(r.logger, "component", "sync"),
	})
	r.cacher = tasks.NewCacher(r.remote, r.engine.Fetcher(), r.playlists, r.events, shared.WithLogger(r.logger, "component", "cache"))
	r.library = tasks.NewLibrary(r.remote, r.engine.Fetcher(), r.events, shared.WithLogger(r.logger, "component", "library"))

	return nil
}

// Close closes the database if it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.engine = nil
	return err
}

// token resolves the bearer token from the --token flag, the environment, then the config file.
func (r *Runner) token(cmd *cli.Command) (string, error) {
	token := r.config.AccessToken(cmd.String("token"))
	if token == "" {
		return "", fmt.Errorf("%w: pass --token, set %s or credentials.spotify.access_token", shared.ErrMissingCredentials, shared.AccessTokenEnv)
	}
	return token, nil
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
	return r.writePlain(format+"\n", args...)
}
