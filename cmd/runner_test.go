package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/planner"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	tu "github.com/desertthunder/setlist/internal/testing"
	"github.com/urfave/cli/v3"
)

// fakeEngine is a canned AssemblyEngine for exercising command actions
// without a catalog or generator.
type fakeEngine struct {
	result       *tasks.GenerateResult
	mutated      *models.AssembledPlaylist
	refineResult *tasks.RefineResult
	err          error

	lastPrompt  string
	lastCount   int
	lastTrackID string
	lastN       int
	lastFilters tasks.RefineFilters
}

func (f *fakeEngine) Generate(ctx context.Context, progress chan<- tasks.ProgressUpdate, prompt string, count int, bl models.Blacklist) (*tasks.GenerateResult, error) {
	f.lastPrompt = prompt
	f.lastCount = count
	if progress != nil {
		progress <- tasks.ProgressUpdate{Phase: tasks.ParseIntent, Message: "Reading the request..."}
		progress <- tasks.ProgressUpdate{Phase: tasks.CollectTracks, Step: 1, Total: 1, Message: "Searching the catalog..."}
	}
	return f.result, f.err
}

func (f *fakeEngine) AddMore(ctx context.Context, progress chan<- tasks.ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, n int) (*models.AssembledPlaylist, error) {
	f.lastN = n
	return f.mutated, f.err
}

func (f *fakeEngine) Remove(ctx context.Context, progress chan<- tasks.ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, trackID string) (*models.AssembledPlaylist, error) {
	f.lastTrackID = trackID
	return f.mutated, f.err
}

func (f *fakeEngine) Refine(ctx context.Context, progress chan<- tasks.ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, filters tasks.RefineFilters) (*models.AssembledPlaylist, *tasks.RefineResult, error) {
	f.lastFilters = filters
	return f.mutated, f.refineResult, f.err
}

var _ tasks.AssemblyEngine = (*fakeEngine)(nil)

func testPlaylist(id string, trackIDs ...string) *models.AssembledPlaylist {
	tracks := make([]models.CandidateTrack, 0, len(trackIDs))
	for _, tid := range trackIDs {
		tracks = append(tracks, tu.Track(tid, "Track "+tid, "Artist "+tid))
	}
	return &models.AssembledPlaylist{
		ID:     id,
		Name:   "test playlist",
		Tracks: tracks,
		Target: len(tracks),
	}
}

func testResult(playlistID string, trackIDs ...string) *tasks.GenerateResult {
	in := models.NewIntent(len(trackIDs))
	return &tasks.GenerateResult{
		Intent:   in,
		Plan:     planner.DefaultPlan(in.TargetTracks),
		Playlist: testPlaylist(playlistID, trackIDs...),
	}
}

// newTestRunner wires a runner against a temp database and a buffer output.
func newTestRunner(t *testing.T, engine tasks.AssemblyEngine) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "setlist.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Engine: engine,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: output,
	})
	t.Cleanup(func() {
		if runner.db != nil {
			runner.db.Close()
		}
	})

	return runner, output
}

// run executes the CLI app with the given arguments.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "setlist", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"setlist"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil engine builds the pipeline", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.engine == nil {
				t.Error("expected a default engine")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Fatal("expected error for non-serializable data")
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limited := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: &limited})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected %q, got %q", "hello world", output.String())
		}

		output.Reset()
		if err := runner.writePlainln("line %d", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "\nline 1\n" {
			t.Errorf("expected %q, got %q", "\nline 1\n", output.String())
		}
	})

	t.Run("writePlainHeader", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: output})

		runner.writePlainHeader("Sessions")
		if !strings.Contains(output.String(), "Sessions") {
			t.Errorf("expected header title, got %q", output.String())
		}
	})

	t.Run("watchProgress formats phases", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Engine: &fakeEngine{}, Output: output})

		ch := make(chan tasks.ProgressUpdate, 3)
		ch <- tasks.ProgressUpdate{Phase: tasks.ParseIntent, Message: "Reading the request..."}
		ch <- tasks.ProgressUpdate{Phase: tasks.CollectTracks, Message: "Searching..."}
		ch <- tasks.ProgressUpdate{Phase: tasks.RelaxConstraints, Message: "Widening the tempo window"}
		close(ch)

		runner.watchProgress(ch)

		result := output.String()
		if !strings.Contains(result, "Reading the request...\n") {
			t.Errorf("expected phase message, got %q", result)
		}
		if !strings.Contains(result, "  Searching...\n") {
			t.Errorf("expected indented collection message, got %q", result)
		}
		if !strings.Contains(result, "  ~ Widening the tempo window\n") {
			t.Errorf("expected relaxation marker, got %q", result)
		}
	})
}

func TestGenerateCommand(t *testing.T) {
	t.Run("generates and persists a session", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1", "t2")}
		runner, output := newTestRunner(t, engine)

		if err := run(t, runner, "generate", "reggaeton", "para", "el", "gimnasio"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		if engine.lastPrompt != "reggaeton para el gimnasio" {
			t.Errorf("expected joined prompt, got %q", engine.lastPrompt)
		}

		result := output.String()
		if !strings.Contains(result, "test playlist") {
			t.Errorf("expected rendered playlist, got %q", result)
		}
		if !strings.Contains(result, "session: ") {
			t.Errorf("expected session id line, got %q", result)
		}

		session, err := runner.sessions.Latest()
		if err != nil {
			t.Fatalf("session was not persisted: %v", err)
		}
		playlist, err := runner.playlists.Latest(session.ID)
		if err != nil {
			t.Fatalf("playlist was not persisted: %v", err)
		}
		if playlist.ID != "pl-1" || len(playlist.Tracks) != 2 {
			t.Errorf("unexpected persisted snapshot: %s with %d tracks", playlist.ID, len(playlist.Tracks))
		}
	})

	t.Run("passes the count flag through", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, _ := newTestRunner(t, engine)

		if err := run(t, runner, "generate", "-n", "25", "algo", "tranquilo"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if engine.lastCount != 25 {
			t.Errorf("expected count 25, got %d", engine.lastCount)
		}
	})

	t.Run("requires a prompt", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "generate"); !errors.Is(err, shared.ErrEmptyPrompt) {
			t.Errorf("expected ErrEmptyPrompt, got %v", err)
		}
	})

	t.Run("propagates engine failures", func(t *testing.T) {
		wantErr := errors.New("catalog down")
		runner, _ := newTestRunner(t, &fakeEngine{err: wantErr})

		if err := run(t, runner, "generate", "anything"); !errors.Is(err, wantErr) {
			t.Errorf("expected engine error, got %v", err)
		}
	})

	t.Run("show-plan prints the plan", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)

		if err := run(t, runner, "generate", "--show-plan", "algo"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !strings.Contains(output.String(), "Execution plan") {
			t.Errorf("expected plan output, got %q", output.String())
		}
	})

	t.Run("exports on request", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)
		base := filepath.Join(t.TempDir(), "export")

		if err := run(t, runner, "generate", "-f", "csv", "-o", base, "algo"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		tu.AssertFileExists(t, base+"_tracks.csv")
		tu.AssertFileExists(t, base+"_metadata.json")
		if !strings.Contains(output.String(), "exported: ") {
			t.Errorf("expected export confirmation, got %q", output.String())
		}
	})

	t.Run("rejects unknown export formats", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, _ := newTestRunner(t, engine)

		err := run(t, runner, "generate", "-f", "yaml", "algo")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestPlaylistCommands(t *testing.T) {
	// seed stores one generated session so playlist commands have something to load
	seed := func(t *testing.T, runner *Runner) string {
		t.Helper()
		if err := run(t, runner, "generate", "seed", "prompt"); err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
		session, err := runner.sessions.Latest()
		if err != nil {
			t.Fatalf("failed to load seeded session: %v", err)
		}
		return session.ID
	}

	t.Run("show renders the latest snapshot", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1", "t2")}
		runner, output := newTestRunner(t, engine)
		seed(t, runner)
		output.Reset()

		if err := run(t, runner, "playlist", "show"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), "test playlist") {
			t.Errorf("expected rendered playlist, got %q", output.String())
		}
	})

	t.Run("show emits JSON on request", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)
		seed(t, runner)
		output.Reset()

		if err := run(t, runner, "playlist", "show", "--json"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), `"id":"pl-1"`) {
			t.Errorf("expected JSON output, got %q", output.String())
		}
	})

	t.Run("show without sessions", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "playlist", "show"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("add stores a new snapshot", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, _ := newTestRunner(t, engine)
		sessionID := seed(t, runner)

		engine.mutated = testPlaylist("pl-2", "t1", "t2", "t3")
		if err := run(t, runner, "playlist", "add", "--n", "2"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if engine.lastN != 2 {
			t.Errorf("expected n 2, got %d", engine.lastN)
		}

		latest, err := runner.playlists.Latest(sessionID)
		if err != nil {
			t.Fatalf("failed to load latest snapshot: %v", err)
		}
		if latest.ID != "pl-2" {
			t.Errorf("expected new snapshot pl-2, got %s", latest.ID)
		}

		history, err := runner.playlists.ListBySession(sessionID)
		if err != nil {
			t.Fatalf("failed to list snapshots: %v", err)
		}
		if len(history) != 2 {
			t.Errorf("expected 2 snapshots, got %d", len(history))
		}
	})

	t.Run("remove blacklists the track", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1", "t2")}
		runner, _ := newTestRunner(t, engine)
		sessionID := seed(t, runner)

		engine.mutated = testPlaylist("pl-2", "t2")
		if err := run(t, runner, "playlist", "remove", "t1"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if engine.lastTrackID != "t1" {
			t.Errorf("expected track t1, got %q", engine.lastTrackID)
		}

		bl, err := runner.sessions.Blacklist(sessionID)
		if err != nil {
			t.Fatalf("failed to load blacklist: %v", err)
		}
		if !bl.Has("t1") {
			t.Error("expected t1 on the session blacklist")
		}
	})

	t.Run("remove requires a track id", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "playlist", "remove"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("refine narrows the stored intent", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1", "t2")}
		runner, output := newTestRunner(t, engine)
		sessionID := seed(t, runner)

		engine.mutated = testPlaylist("pl-2", "t1")
		engine.refineResult = &tasks.RefineResult{
			Applied:   []string{"genre"},
			Unapplied: []string{"mood"},
		}

		output.Reset()
		if err := run(t, runner, "playlist", "refine", "--genre", "rock", "--min-year", "1990"); err != nil {
			t.Fatalf("refine failed: %v", err)
		}

		if len(engine.lastFilters.Genres) != 1 || engine.lastFilters.Genres[0] != "rock" {
			t.Errorf("expected genre filter, got %v", engine.lastFilters.Genres)
		}
		if engine.lastFilters.MinYear != 1990 {
			t.Errorf("expected min year 1990, got %d", engine.lastFilters.MinYear)
		}

		session, err := runner.sessions.Get(sessionID)
		if err != nil {
			t.Fatalf("failed to reload session: %v", err)
		}
		if len(session.Intent.Genres) != 1 || session.Intent.Genres[0] != "rock" {
			t.Errorf("expected narrowed intent genres, got %v", session.Intent.Genres)
		}
		if session.Intent.Era.MinYear != 1990 {
			t.Errorf("expected narrowed era, got %+v", session.Intent.Era)
		}

		if !strings.Contains(output.String(), "mood") {
			t.Errorf("expected unapplied filter notice, got %q", output.String())
		}
	})

	t.Run("export writes the current snapshot", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, _ := newTestRunner(t, engine)
		seed(t, runner)

		path := filepath.Join(t.TempDir(), "playlist.txt")
		if err := run(t, runner, "playlist", "export", "-f", "text", "-o", path); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		tu.AssertFileExists(t, path)
	})
}

func TestSessionCommands(t *testing.T) {
	seed := func(t *testing.T, runner *Runner, prompt string) string {
		t.Helper()
		if err := run(t, runner, "generate", prompt); err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
		session, err := runner.sessions.Latest()
		if err != nil {
			t.Fatalf("failed to load seeded session: %v", err)
		}
		return session.ID
	}

	t.Run("list with no sessions", func(t *testing.T) {
		runner, output := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "session", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No sessions yet") {
			t.Errorf("expected empty-state message, got %q", output.String())
		}
	})

	t.Run("list shows prompts", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)
		seed(t, runner, "first prompt")
		output.Reset()

		if err := run(t, runner, "session", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "first prompt") {
			t.Errorf("expected prompt in listing, got %q", output.String())
		}
	})

	t.Run("list emits JSON on request", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)
		seed(t, runner, "json prompt")
		output.Reset()

		if err := run(t, runner, "session", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "json prompt") {
			t.Errorf("expected JSON output, got %q", output.String())
		}
	})

	t.Run("history lists snapshots", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, output := newTestRunner(t, engine)
		sessionID := seed(t, runner, "history prompt")
		output.Reset()

		if err := run(t, runner, "session", "history", sessionID); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(output.String(), "pl-1") {
			t.Errorf("expected snapshot id in history, got %q", output.String())
		}
	})

	t.Run("delete removes the session", func(t *testing.T) {
		engine := &fakeEngine{result: testResult("pl-1", "t1")}
		runner, _ := newTestRunner(t, engine)
		sessionID := seed(t, runner, "doomed prompt")

		if err := run(t, runner, "session", "delete", sessionID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := runner.sessions.Get(sessionID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
	})
}

func TestDBCommands(t *testing.T) {
	t.Run("migrate applies the schema", func(t *testing.T) {
		runner, output := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "db", "migrate"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}
		if !strings.Contains(output.String(), "migrations up to date") {
			t.Errorf("expected confirmation, got %q", output.String())
		}

		var name string
		err := runner.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sessions'").Scan(&name)
		if err != nil {
			t.Errorf("expected sessions table after migrate: %v", err)
		}
	})

	t.Run("rollback undoes the last migration", func(t *testing.T) {
		runner, output := newTestRunner(t, &fakeEngine{})

		if err := run(t, runner, "db", "migrate"); err != nil {
			t.Fatalf("migrate failed: %v", err)
		}
		if err := run(t, runner, "db", "rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if !strings.Contains(output.String(), "rolled back one migration") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
	})
}
