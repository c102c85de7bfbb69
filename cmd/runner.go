package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config    *shared.Config
	catalog   services.Catalog
	generator services.Generator
	logger    *log.Logger
	output    io.Writer
	engine    tasks.AssemblyEngine

	db        *sql.DB
	sessions  *repositories.SessionRepository
	playlists *repositories.PlaylistRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config    *shared.Config
	Catalog   services.Catalog
	Generator services.Generator
	Engine    tasks.AssemblyEngine
	Logger    *log.Logger
	Output    io.Writer
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
	if opts.Engine == nil {
		opts.Engine = tasks.NewPlaylistEngine(opts.Catalog, opts.Generator, opts.Logger, tasks.EngineOptions{
			Overshoot:       opts.Config.Assembly.Overshoot,
			SearchRateLimit: opts.Config.Assembly.SearchRateLimit,
		})
	}

	return &Runner{
		config:    opts.Config,
		catalog:   opts.Catalog,
		generator: opts.Generator,
		logger:    opts.Logger,
		output:    opts.Output,
		engine:    opts.Engine,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, generateCommand, playlistCommand, sessionCommand, dbCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured database and wires the repositories.
// Commands touching persistence call it lazily so read-only commands do not
// require a database file.
func (r *Runner) openDatabase() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.sessions = repositories.NewSessionRepository(db)
	r.playlists = repositories.NewPlaylistRepository(db)
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// watchProgress drains the progress channel, printing one line per phase
// transition and per collection step.
func (r *Runner) watchProgress(progressCh <-chan tasks.ProgressUpdate) {
	for update := range progressCh {
		switch update.Phase {
		case tasks.CollectTracks:
			r.writePlain("  %s\n", update.Message)
		case tasks.RelaxConstraints:
			r.writePlain("  ~ %s\n", update.Message)
		default:
			r.writePlain("%s\n", update.Message)
		}
	}
}
