package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/autoplaylist/internal/inference"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/repositories"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/desertthunder/autoplaylist/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	provider   services.Provider
	inference  services.InferenceClient
	logger     *log.Logger
	output     io.Writer
	mu         sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Provider and Inference override the services built from the configuration.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	Provider   services.Provider
	Inference  services.InferenceClient
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
	if opts.Provider == nil && opts.Spotify != nil {
		opts.Provider = opts.Spotify
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		provider:   opts.Provider,
		inference:  opts.Inference,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, collectionsCommand, generateCommand, serveCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config, applies environment overrides and builds
// the services the configuration allows.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(cmd.String("log-level")))

	path := cmd.String("config")
	if path != "" {
		r.configPath = path
		config, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			r.config = config
		case errors.Is(err, shared.ErrMissingConfig):
			if cmd.IsSet("config") {
				r.logger.Warn("config file not found, using defaults", "path", path)
			}
		default:
			return ctx, err
		}
	}
	r.config.ApplyEnv()

	if r.provider == nil {
		if err := r.initSpotify(ctx); err != nil {
			r.logger.Debug("spotify unavailable", "error", err)
		}
	}
	if r.inference == nil {
		creds := r.config.Credentials.Inference
		if client, err := services.NewGroqClient(creds.APIKey, creds.BaseURL, r.config.Inference.RequestsPerMinute); err == nil {
			r.inference = client
		} else {
			r.logger.Debug("inference unavailable", "error", err)
		}
	}
	return ctx, nil
}

// initSpotify builds the Spotify service from the configured credentials and saved token.
// Refreshed tokens are written back to the configuration file.
func (r *Runner) initSpotify(ctx context.Context) error {
	creds := r.config.Credentials.Spotify.Map()
	delete(creds, "access_token")
	delete(creds, "refresh_token")

	svc, err := services.NewSpotifyService(creds,
		services.WithSpotifyRateLimit(r.config.Pipeline.ProviderRequestsPerSecond),
		services.WithArtistGenreTTL(r.config.Pipeline.GenreTTL()),
	)
	if err != nil {
		return err
	}
	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	})

	r.spotify = svc
	if token := r.config.Credentials.Spotify.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			return err
		}
		r.provider = svc
	}
	return nil
}

// saveTokens stores token in the configuration and writes it to the config path, if any.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// requireProvider returns the provider or an error pointing at the auth command.
func (r *Runner) requireProvider() (services.Provider, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("%w: run 'autoplaylist auth' first", shared.ErrNotAuthenticated)
	}
	return r.provider, nil
}

// openCache opens the configured database, applies migrations and returns the song cache.
func (r *Runner) openCache(ctx context.Context) (*repositories.SongCache, *sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
	}
	return repositories.NewSongCache(db), db, nil
}

// inferrer wraps the inference client in a batcher configured from [shared.InferenceConfig].
// Returns nil when no client is configured; runs that need inference then leave facts empty.
func (r *Runner) inferrer(logger *log.Logger) tasks.Inferrer {
	if r.inference == nil {
		return nil
	}
	cfg := r.config.Inference
	return inference.NewBatcher(r.inference, inference.BatcherOpts{
		Params: services.CompletionParams{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		Timeout:  cfg.Timeout(),
		MaxHints: cfg.MaxGenreHints,
		Logger:   logger,
	})
}

func (r *Runner) engine(provider services.Provider, cache tasks.FactStore) *tasks.Engine {
	return tasks.NewEngine(provider, cache, r.inferrer(r.logger), tasks.EngineOpts{
		Concurrency: r.config.Pipeline.Concurrency,
		Logger:      r.logger,
	})
}

// defaultOptions converts the [generate] section of the configuration.
func (r *Runner) defaultOptions() models.Options {
	g := r.config.Generate
	return models.Options{
		WantGenre:            g.Genre,
		WantArtist:           g.Artist,
		WantLanguage:         g.Language,
		AllowDuplicates:      g.AllowDuplicates,
		ArtistMinAppearances: g.ArtistMinAppearances,
		MaxGenres:            g.MaxGenres,
		MaxArtists:           g.MaxArtists,
		MaxLanguages:         g.MaxLanguages,
	}
}

// logProgress logs every update until progress is closed.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
	}
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

// SetLogger replaces the logger used by commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}
