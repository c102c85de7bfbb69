package tasks

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	itesting "github.com/desertthunder/setlist/internal/testing"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("full pipeline with a generated plan", func(t *testing.T) {
		catalog := &itesting.MockCatalog{Searches: map[string][]models.CandidateTrack{
			"workout mix": {
				itesting.Track("t1", "One", "Artist A"),
				itesting.Track("t2", "Two", "Artist B"),
				itesting.Track("t3", "Three", "Artist C"),
				itesting.Track("t4", "Four", "Artist D"),
				itesting.Track("t5", "Five", "Artist E"),
			},
		}}
		generator := &itesting.MockGenerator{Responses: []string{
			`{}`,
			`{"thinking":["search the catalog"],` +
				`"execution_plan":[` +
				`{"tool":"catalog-search","params":{"query":"workout mix"}},` +
				`{"tool":"diversity-adjustment","params":{"shuffle":false,"avoid_consecutive_same_artist":true,"total_target":4}}],` +
				`"total_target":4}`,
		}}
		engine := NewPlaylistEngine(catalog, generator, logger, EngineOptions{Overshoot: 1.0})

		progress := make(chan ProgressUpdate, 50)
		result, err := engine.Generate(ctx, progress, "reggaeton para el gimnasio", 4, nil)
		close(progress)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if result.Intent.Source != models.SourceMerged {
			t.Errorf("Intent.Source = %q, want merged", result.Intent.Source)
		}
		if len(result.Playlist.Tracks) != 4 {
			t.Fatalf("got %d tracks, want 4", len(result.Playlist.Tracks))
		}
		if result.Playlist.Shortfall != 0 {
			t.Errorf("Shortfall = %d, want 0", result.Playlist.Shortfall)
		}
		if result.Playlist.Name != "reggaeton para el gimnasio" {
			t.Errorf("Name = %q, want the prompt", result.Playlist.Name)
		}
		if last := result.Plan.Calls[len(result.Plan.Calls)-1]; last.Tool != models.ToolDiversity {
			t.Errorf("last plan tool = %q, want diversity-adjustment", last.Tool)
		}

		phases := map[Phase]bool{}
		for update := range progress {
			phases[update.Phase] = true
		}
		for _, phase := range []Phase{ParseIntent, PlanExecution, CollectTracks, AssemblePlaylist} {
			if !phases[phase] {
				t.Errorf("no %s progress update emitted", phase)
			}
		}
	})

	t.Run("rejected plan falls back to the default", func(t *testing.T) {
		catalog := &itesting.MockCatalog{Searches: map[string][]models.CandidateTrack{
			"gasolina": {itesting.Track("cat-1", "Gasolina", "Daddy Yankee")},
			"dame":     {itesting.Track("cat-2", "Dame", "Ivy Queen")},
			"atrevete": {itesting.Track("cat-3", "Atrevete", "Calle 13")},
		}}
		generator := &itesting.MockGenerator{Responses: []string{
			`{}`,
			`I refuse to produce JSON.`,
			`{"tracks":[{"title":"Gasolina","artist":"Daddy Yankee"},` +
				`{"title":"Dame","artist":"Ivy Queen"},` +
				`{"title":"Atrevete","artist":"Calle 13"}]}`,
		}}
		engine := NewPlaylistEngine(catalog, generator, logger, EngineOptions{Overshoot: 1.0})

		result, err := engine.Generate(ctx, nil, "reggaeton para el gimnasio", 3, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(result.Plan.Calls) != 2 || result.Plan.Calls[0].Tool != models.ToolCreative {
			t.Errorf("Plan.Calls = %v, want the default creative plan", result.Plan.Calls)
		}
		if len(result.Playlist.Tracks) != 3 {
			t.Errorf("got %d tracks, want 3", len(result.Playlist.Tracks))
		}
	})

	t.Run("session blacklist filters candidates", func(t *testing.T) {
		catalog := &itesting.MockCatalog{Searches: map[string][]models.CandidateTrack{
			"workout": {
				itesting.Track("banned", "Banned", "Artist A"),
				itesting.Track("t2", "Two", "Artist B"),
			},
		}}
		generator := &itesting.MockGenerator{Responses: []string{
			`{}`,
			`{"execution_plan":[{"tool":"catalog-search","params":{"query":"workout"}}],"total_target":2}`,
		}}
		engine := NewPlaylistEngine(catalog, generator, logger, EngineOptions{Overshoot: 1.0})

		result, err := engine.Generate(ctx, nil, "pop para entrenar", 2, models.NewBlacklist("banned"))
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		for _, track := range result.Playlist.Tracks {
			if track.ID == "banned" {
				t.Error("blacklisted track delivered")
			}
		}
	})

	t.Run("empty prompt", func(t *testing.T) {
		engine := NewPlaylistEngine(&itesting.MockCatalog{}, nil, logger, EngineOptions{})
		if _, err := engine.Generate(ctx, nil, "", 10, nil); !errors.Is(err, shared.ErrEmptyPrompt) {
			t.Errorf("err = %v, want ErrEmptyPrompt", err)
		}
	})

	t.Run("runs to completion without a catalog", func(t *testing.T) {
		engine := NewPlaylistEngine(nil, nil, logger, EngineOptions{Overshoot: 1.0})

		result, err := engine.Generate(ctx, nil, "rock para correr", 5, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(result.Playlist.Tracks) != 0 {
			t.Errorf("got %d tracks, want none without a catalog", len(result.Playlist.Tracks))
		}
		if result.Playlist.Shortfall != 5 {
			t.Errorf("Shortfall = %d, want 5", result.Playlist.Shortfall)
		}
	})

	t.Run("relaxations land on the playlist", func(t *testing.T) {
		catalog := &itesting.MockCatalog{Searches: map[string][]models.CandidateTrack{
			"workout": {
				{ID: "t1", Title: "One", Artists: []string{"Artist A"}, BPM: 110},
				{ID: "t2", Title: "Two", Artists: []string{"Artist B"}, BPM: 130},
			},
		}}
		generator := &itesting.MockGenerator{Responses: []string{
			`{"min_bpm":100,"max_bpm":120}`,
			`{"execution_plan":[{"tool":"catalog-search","params":{"query":"workout"}}],"total_target":2}`,
		}}
		engine := NewPlaylistEngine(catalog, generator, logger, EngineOptions{Overshoot: 1.0})

		result, err := engine.Generate(ctx, nil, "pop para entrenar", 2, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(result.Playlist.Relaxations) == 0 {
			t.Fatal("no relaxation steps recorded")
		}
		if result.Playlist.Relaxations[0].Constraint != "bpm_window" {
			t.Errorf("first relaxation = %q, want bpm_window", result.Playlist.Relaxations[0].Constraint)
		}
	})
}

func TestDiversityOptions(t *testing.T) {
	t.Run("defaults without a diversity call", func(t *testing.T) {
		opts := diversityOptions(models.ExecutionPlan{})
		if !opts.Shuffle || !opts.AvoidConsecutive {
			t.Errorf("opts = %+v, want shuffle and interleave on by default", opts)
		}
	})

	t.Run("reads the trailing call parameters", func(t *testing.T) {
		plan := models.ExecutionPlan{Calls: []models.ToolCall{
			{Tool: models.ToolDiversity, Params: map[string]any{
				"shuffle":                       false,
				"avoid_consecutive_same_artist": false,
				"seed":                          7,
			}},
		}}
		opts := diversityOptions(plan)
		if opts.Shuffle || opts.AvoidConsecutive {
			t.Errorf("opts = %+v, want both toggles off", opts)
		}
		if opts.Seed != 7 {
			t.Errorf("Seed = %d, want 7", opts.Seed)
		}
	})
}

func TestPlaylistName(t *testing.T) {
	t.Run("festival name and year", func(t *testing.T) {
		in := models.NewIntent(10)
		in.Festival = &models.FestivalRef{Name: "Primavera Sound", Year: 2025}
		if got := playlistName("whatever prompt", in); got != "Primavera Sound 2025" {
			t.Errorf("playlistName = %q, want Primavera Sound 2025", got)
		}
	})

	t.Run("long prompts are truncated", func(t *testing.T) {
		prompt := "an extremely verbose playlist request that keeps going well past the limit"
		got := playlistName(prompt, models.NewIntent(10))
		if len(got) > 52 {
			t.Errorf("len = %d, want truncated with ellipsis", len(got))
		}
	})
}
