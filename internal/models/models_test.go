package models

import (
	"errors"
	"testing"

	"github.com/desertthunder/setlist/internal/shared"
)

func TestNewIntent(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   int
	}{
		{"in range", 50, 50},
		{"below minimum", 0, MinTargetTracks},
		{"negative", -10, MinTargetTracks},
		{"above maximum", 500, MaxTargetTracks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewIntent(tt.target)
			if in.TargetTracks != tt.want {
				t.Errorf("TargetTracks = %d, want %d", in.TargetTracks, tt.want)
			}
		})
	}

	t.Run("collections are initialized", func(t *testing.T) {
		in := NewIntent(10)
		for name, list := range map[string][]string{
			"Vibes": in.Vibes, "Genres": in.Genres, "IncludeArtists": in.IncludeArtists,
			"ExcludeArtists": in.ExcludeArtists, "Languages": in.Languages,
			"Seeds": in.Seeds, "QueryTerms": in.QueryTerms,
		} {
			if list == nil {
				t.Errorf("%s is nil", name)
			}
		}
	})
}

func TestIntentValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		in := NewIntent(10)
		if err := in.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("non-positive target", func(t *testing.T) {
		in := NewIntent(10)
		in.TargetTracks = 0
		if err := in.Validate(); !errors.Is(err, shared.ErrInvalidTarget) {
			t.Errorf("err = %v, want ErrInvalidTarget", err)
		}
	})

	t.Run("strict language without languages", func(t *testing.T) {
		in := NewIntent(10)
		in.StrictLanguage = true
		if err := in.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestIntentClone(t *testing.T) {
	in := NewIntent(10)
	in.Genres = []string{"rock"}
	in.Festival = &FestivalRef{Name: "Primavera Sound", Year: 2025, QueryVariants: []string{"primavera"}}

	clone := in.Clone()
	clone.Genres[0] = "pop"
	clone.Festival.Year = 1999
	clone.Festival.QueryVariants[0] = "changed"

	if in.Genres[0] != "rock" {
		t.Errorf("Genres[0] = %q, clone shares the slice", in.Genres[0])
	}
	if in.Festival.Year != 2025 {
		t.Errorf("Festival.Year = %d, clone shares the pointer", in.Festival.Year)
	}
	if in.Festival.QueryVariants[0] != "primavera" {
		t.Errorf("QueryVariants[0] = %q, clone shares the variants", in.Festival.QueryVariants[0])
	}
}

func TestToolValid(t *testing.T) {
	for _, tool := range Tools() {
		if !tool.Valid() {
			t.Errorf("%q reported invalid", tool)
		}
	}
	if Tool("spotify-magic").Valid() {
		t.Error("unknown tool reported valid")
	}
}

func TestToolCallParams(t *testing.T) {
	call := ToolCall{Params: map[string]any{
		"count":   float64(25), // JSON decoding produces float64
		"exact":   42,
		"query":   "workout",
		"shuffle": true,
	}}

	if got := call.IntParam("count", 0); got != 25 {
		t.Errorf("IntParam(count) = %d, want 25", got)
	}
	if got := call.IntParam("exact", 0); got != 42 {
		t.Errorf("IntParam(exact) = %d, want 42", got)
	}
	if got := call.IntParam("missing", 7); got != 7 {
		t.Errorf("IntParam(missing) = %d, want fallback 7", got)
	}
	if got := call.IntParam("query", 7); got != 7 {
		t.Errorf("IntParam on a string = %d, want fallback 7", got)
	}
	if got := call.StringParam("query", ""); got != "workout" {
		t.Errorf("StringParam(query) = %q, want workout", got)
	}
	if got := call.StringParam("missing", "fallback"); got != "fallback" {
		t.Errorf("StringParam(missing) = %q, want fallback", got)
	}
	if !call.BoolParam("shuffle", false) {
		t.Error("BoolParam(shuffle) = false, want true")
	}
	if !call.BoolParam("missing", true) {
		t.Error("BoolParam(missing) = false, want fallback true")
	}
}

func TestBlacklist(t *testing.T) {
	bl := NewBlacklist("t1", "t2")
	if !bl.Has("t1") || !bl.Has("t2") {
		t.Error("seeded IDs missing")
	}
	if bl.Has("t3") {
		t.Error("unknown ID reported excluded")
	}

	bl.Add("t1")
	if len(bl) != 2 {
		t.Errorf("len = %d, re-adding grew the set", len(bl))
	}
	bl.Add("")
	if len(bl) != 2 {
		t.Errorf("len = %d, empty ID was added", len(bl))
	}

	clone := bl.Clone()
	clone.Add("t3")
	if bl.Has("t3") {
		t.Error("clone shares the underlying map")
	}
}

func TestAssembledPlaylist(t *testing.T) {
	playlist := &AssembledPlaylist{
		ID: "p1",
		Tracks: []CandidateTrack{
			{ID: "t1", Title: "One", Artists: []string{"Artist A"}},
			{ID: "t2", Title: "Two", Artists: []string{"Artist B"}},
		},
		ArtistDistribution: map[string]int{"Artist A": 1, "Artist B": 1},
		Relaxations:        []RelaxationStep{{Constraint: "bpm_window"}},
		Target:             2,
	}

	t.Run("track ids", func(t *testing.T) {
		ids := playlist.TrackIDs()
		if len(ids) != 2 {
			t.Fatalf("got %d ids, want 2", len(ids))
		}
		if _, ok := ids["t1"]; !ok {
			t.Error("t1 missing from the set")
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		clone := playlist.Clone()
		clone.Tracks[0].Title = "Changed"
		clone.ArtistDistribution["Artist A"] = 9
		clone.Relaxations[0].Constraint = "changed"

		if playlist.Tracks[0].Title != "One" {
			t.Error("clone shares the track slice")
		}
		if playlist.ArtistDistribution["Artist A"] != 1 {
			t.Error("clone shares the distribution map")
		}
		if playlist.Relaxations[0].Constraint != "bpm_window" {
			t.Error("clone shares the relaxation log")
		}
	})
}

func TestLeadArtist(t *testing.T) {
	if got := (CandidateTrack{Artists: []string{"First", "Second"}}).LeadArtist(); got != "First" {
		t.Errorf("LeadArtist = %q, want First", got)
	}
	if got := (CandidateTrack{}).LeadArtist(); got != "" {
		t.Errorf("LeadArtist = %q, want empty for no artists", got)
	}
}

func TestRanges(t *testing.T) {
	if !(EraRange{}).IsZero() || (EraRange{MinYear: 1980}).IsZero() {
		t.Error("EraRange.IsZero misreports")
	}
	if !(TempoRange{}).IsZero() || (TempoRange{MaxBPM: 120}).IsZero() {
		t.Error("TempoRange.IsZero misreports")
	}
}

func TestSessionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s := NewSession("reggaeton para el gimnasio", NewIntent(10), ExecutionPlan{})
		if err := s.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("empty prompt", func(t *testing.T) {
		s := NewSession("", NewIntent(10), ExecutionPlan{})
		if err := s.Validate(); err == nil {
			t.Error("empty prompt accepted")
		}
	})

	t.Run("invalid intent", func(t *testing.T) {
		in := NewIntent(10)
		in.TargetTracks = -1
		s := NewSession("prompt", in, ExecutionPlan{})
		if err := s.Validate(); !errors.Is(err, shared.ErrInvalidTarget) {
			t.Errorf("err = %v, want ErrInvalidTarget", err)
		}
	})
}
