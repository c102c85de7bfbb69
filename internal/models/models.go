// package models defines the data model for the setlist assembly service
package models

import (
	"fmt"
	"slices"

	"github.com/desertthunder/setlist/internal/shared"
)

// Intent source tags, recorded for observability.
const (
	SourceHeuristic = "heuristic"
	SourceGenerator = "generator"
	SourceMerged    = "merged"
)

// Bounds for the requested track count.
const (
	MinTargetTracks = 1
	MaxTargetTracks = 200
)

// MaxQueryTerms caps the number of free-text query terms carried by an Intent.
const MaxQueryTerms = 10

// EraRange restricts candidates to a release-year window. Zero values mean unbounded.
type EraRange struct {
	MinYear int `json:"min_year,omitempty"`
	MaxYear int `json:"max_year,omitempty"`
}

// IsZero reports whether no era restriction is set.
func (e EraRange) IsZero() bool { return e.MinYear == 0 && e.MaxYear == 0 }

// TempoRange restricts candidates to a BPM window. Zero values mean unbounded.
type TempoRange struct {
	MinBPM int `json:"min_bpm,omitempty"`
	MaxBPM int `json:"max_bpm,omitempty"`
}

// IsZero reports whether no tempo restriction is set.
func (t TempoRange) IsZero() bool { return t.MinBPM == 0 && t.MaxBPM == 0 }

// Rules is the bag of hard constraints attached to an Intent.
type Rules struct {
	InstrumentalOnly bool `json:"instrumental_only,omitempty"`
	CleanOnly        bool `json:"clean_only,omitempty"`
	MinBPM           int  `json:"min_bpm,omitempty"`
	MaxBPM           int  `json:"max_bpm,omitempty"`
}

// FestivalRef is a normalized festival or event reference extracted from a prompt.
// Immutable once produced.
type FestivalRef struct {
	Name          string   `json:"name"`
	Year          int      `json:"year"`
	QueryVariants []string `json:"query_variants"`
}

// Intent is the structured representation of a playlist request.
// Every collection field is non-nil after construction; the zero value of a
// scalar means "unconstrained".
type Intent struct {
	Activity           string       `json:"activity,omitempty"`
	Vibes              []string     `json:"vibes"`
	Genres             []string     `json:"genres"`
	IncludeArtists     []string     `json:"include_artists"`
	ExcludeArtists     []string     `json:"exclude_artists"`
	Era                EraRange     `json:"era"`
	Languages          []string     `json:"languages"`
	StrictLanguage     bool         `json:"strict_language,omitempty"`
	Tempo              TempoRange   `json:"tempo"`
	Energy             float64      `json:"energy,omitempty"`
	Valence            float64      `json:"valence,omitempty"`
	Acousticness       float64      `json:"acousticness,omitempty"`
	Danceability       float64      `json:"danceability,omitempty"`
	DurationMinutes    int          `json:"duration_minutes,omitempty"`
	TargetTracks       int          `json:"target_tracks"`
	Rules              Rules        `json:"rules"`
	MinArtistDiversity int          `json:"min_artist_diversity,omitempty"`
	Seeds              []string     `json:"seeds"`
	QueryTerms         []string     `json:"query_terms"`
	Festival           *FestivalRef `json:"festival,omitempty"`
	Source             string       `json:"source,omitempty"`
}

// NewIntent returns an Intent with every collection initialized and the
// target clamped to [MinTargetTracks, MaxTargetTracks].
func NewIntent(target int) Intent {
	if target < MinTargetTracks {
		target = MinTargetTracks
	}
	if target > MaxTargetTracks {
		target = MaxTargetTracks
	}
	return Intent{
		Vibes:          []string{},
		Genres:         []string{},
		IncludeArtists: []string{},
		ExcludeArtists: []string{},
		Languages:      []string{},
		Seeds:          []string{},
		QueryTerms:     []string{},
		TargetTracks:   target,
	}
}

// Validate checks the Intent invariants: a positive target track count, and a
// non-empty language allow-list whenever language strictness is requested.
func (i *Intent) Validate() error {
	if i.TargetTracks <= 0 {
		return fmt.Errorf("%w: target track count must be positive, got %d", shared.ErrInvalidTarget, i.TargetTracks)
	}
	if i.StrictLanguage && len(i.Languages) == 0 {
		return fmt.Errorf("%w: strict language requires a language allow-list", shared.ErrInvalidInput)
	}
	return nil
}

// Clone returns a deep copy so relaxation passes can loosen constraints
// without touching the caller's Intent.
func (i Intent) Clone() Intent {
	out := i
	out.Vibes = slices.Clone(i.Vibes)
	out.Genres = slices.Clone(i.Genres)
	out.IncludeArtists = slices.Clone(i.IncludeArtists)
	out.ExcludeArtists = slices.Clone(i.ExcludeArtists)
	out.Languages = slices.Clone(i.Languages)
	out.Seeds = slices.Clone(i.Seeds)
	out.QueryTerms = slices.Clone(i.QueryTerms)
	if i.Festival != nil {
		f := *i.Festival
		f.QueryVariants = slices.Clone(i.Festival.QueryVariants)
		out.Festival = &f
	}
	return out
}
