package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// RefineFilters narrows an existing playlist. Genre and release-year filters
// are evaluated against candidate metadata; mood, energy and tempo cannot be
// evaluated without audio-feature data and are reported as unapplied.
type RefineFilters struct {
	Genres    []string
	MinYear   int
	MaxYear   int
	Mood      string
	MinEnergy float64
	MaxEnergy float64
	Tempo     models.TempoRange
}

// RefineResult reports which filters took effect and how many tracks were
// backfilled afterward.
type RefineResult struct {
	Applied    []string
	Unapplied  []string
	Backfilled int
}

// Mutator applies incremental operations to an assembled playlist. Every
// operation returns a brand-new snapshot; the caller's playlist is never
// touched, and the session blacklist is honored by every backfill.
type Mutator struct {
	relaxer   *Relaxer
	assembler *Assembler
	logger    *log.Logger
}

// NewMutator constructs a Mutator sharing the pipeline's relaxer and assembler.
func NewMutator(relaxer *Relaxer, assembler *Assembler, logger *log.Logger) *Mutator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Mutator{relaxer: relaxer, assembler: assembler, logger: logger}
}

// AddMore collects n additional tracks with the same intent, excluding
// everything already present, and returns the grown snapshot capped at
// [models.MaxTargetTracks].
func (m *Mutator) AddMore(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, n int) (*models.AssembledPlaylist, error) {
	if current == nil {
		return nil, fmt.Errorf("%w: no playlist to grow", shared.ErrPlaylistNotFound)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: add count must be positive, got %d", shared.ErrInvalidInput, n)
	}
	sendProgress(progress, mutatingUpdate("add-more"))

	fresh, steps := m.backfill(ctx, progress, current, bl, in, n)

	out := current.Clone()
	out.ID = shared.GenerateID()
	have := out.TrackIDs()
	for _, t := range fresh {
		if len(out.Tracks) >= models.MaxTargetTracks {
			break
		}
		if _, dup := have[t.ID]; dup {
			continue
		}
		have[t.ID] = struct{}{}
		out.Tracks = append(out.Tracks, t)
	}
	repairAdjacent(out.Tracks)

	out.Target = min(current.Target+n, models.MaxTargetTracks)
	out.Shortfall = max(0, out.Target-len(out.Tracks))
	out.Relaxations = append(out.Relaxations, steps...)
	out.ArtistDistribution = artistDistribution(out.Tracks)
	return out, nil
}

// Remove blacklists the track and backfills exactly the resulting deficit.
// Replaying the same removal is a no-op beyond the (idempotent) blacklist
// append, and a blacklisted ID is never re-admitted.
func (m *Mutator) Remove(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, trackID string) (*models.AssembledPlaylist, error) {
	if current == nil {
		return nil, fmt.Errorf("%w: no playlist to remove from", shared.ErrPlaylistNotFound)
	}
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}
	sendProgress(progress, mutatingUpdate("remove"))

	bl.Add(trackID)

	out := current.Clone()
	out.ID = shared.GenerateID()
	kept := out.Tracks[:0]
	for _, t := range out.Tracks {
		if t.ID != trackID {
			kept = append(kept, t)
		}
	}
	out.Tracks = kept

	if deficit := current.Target - len(out.Tracks); deficit > 0 {
		fresh, steps := m.backfill(ctx, progress, out, bl, in, deficit)
		have := out.TrackIDs()
		for _, t := range fresh {
			if len(out.Tracks) >= current.Target {
				break
			}
			if _, dup := have[t.ID]; dup {
				continue
			}
			have[t.ID] = struct{}{}
			out.Tracks = append(out.Tracks, t)
		}
		out.Relaxations = append(out.Relaxations, steps...)
		repairAdjacent(out.Tracks)
	}

	out.Shortfall = max(0, current.Target-len(out.Tracks))
	out.ArtistDistribution = artistDistribution(out.Tracks)
	return out, nil
}

// Refine filters the current tracks by the evaluable constraints and
// backfills any deficit with the refinement folded into the intent's query
// terms. Filters lacking the metadata to evaluate are reported, not guessed.
func (m *Mutator) Refine(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, filters RefineFilters) (*models.AssembledPlaylist, *RefineResult, error) {
	if current == nil {
		return nil, nil, fmt.Errorf("%w: no playlist to refine", shared.ErrPlaylistNotFound)
	}
	sendProgress(progress, mutatingUpdate("refine"))

	result := &RefineResult{Applied: []string{}, Unapplied: []string{}}

	out := current.Clone()
	out.ID = shared.GenerateID()

	if len(filters.Genres) > 0 {
		out.Tracks = filterByGenre(out.Tracks, filters.Genres)
		result.Applied = append(result.Applied, "genre")
	}
	if filters.MinYear > 0 || filters.MaxYear > 0 {
		out.Tracks = filterByYear(out.Tracks, filters.MinYear, filters.MaxYear)
		result.Applied = append(result.Applied, "decade")
	}

	// no audio-feature data to evaluate these against
	if filters.Mood != "" {
		result.Unapplied = append(result.Unapplied, "mood")
	}
	if filters.MinEnergy > 0 || filters.MaxEnergy > 0 {
		result.Unapplied = append(result.Unapplied, "energy")
	}
	if !filters.Tempo.IsZero() {
		result.Unapplied = append(result.Unapplied, "tempo")
	}

	if deficit := current.Target - len(out.Tracks); deficit > 0 {
		refined := in.Clone()
		refined.Genres = unionCapped(refined.Genres, filters.Genres)
		terms := filters.Genres
		if filters.MinYear > 0 {
			terms = append(terms, fmt.Sprintf("%ds", filters.MinYear-filters.MinYear%10))
		}
		refined.QueryTerms = unionCapped(refined.QueryTerms, terms)
		if filters.MinYear > 0 || filters.MaxYear > 0 {
			refined.Era = models.EraRange{MinYear: filters.MinYear, MaxYear: filters.MaxYear}
		}

		fresh, steps := m.backfill(ctx, progress, out, bl, refined, deficit)
		have := out.TrackIDs()
		for _, t := range fresh {
			if len(out.Tracks) >= current.Target {
				break
			}
			if _, dup := have[t.ID]; dup {
				continue
			}
			have[t.ID] = struct{}{}
			out.Tracks = append(out.Tracks, t)
			result.Backfilled++
		}
		out.Relaxations = append(out.Relaxations, steps...)
		repairAdjacent(out.Tracks)
	}

	out.Shortfall = max(0, current.Target-len(out.Tracks))
	out.ArtistDistribution = artistDistribution(out.Tracks)
	return out, result, nil
}

// backfill collects count fresh tracks for the playlist, honoring the
// blacklist and excluding every ID already present.
func (m *Mutator) backfill(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, count int) ([]models.CandidateTrack, []models.RelaxationStep) {
	opts := DefaultCollectOptions()
	if bl != nil {
		opts.Blacklist = bl
	}
	opts.ExcludeIDs = current.TrackIDs()

	plan := backfillPlan(in, count)
	collected, steps := m.relaxer.Collect(ctx, progress, plan, in, opts, count)

	assembled := m.assembler.Assemble(collected, count, AssembleOptions{AvoidConsecutive: true})
	return assembled.Tracks, steps
}

// backfillPlan is the fixed retrieval plan for mutation backfills: artist
// lookups when the intent names artists, catalog search when it carries
// query terms, then creative generation for the remainder.
func backfillPlan(in models.Intent, count int) models.ExecutionPlan {
	calls := []models.ToolCall{}
	if len(in.IncludeArtists) > 0 || len(in.Seeds) > 0 {
		calls = append(calls, models.ToolCall{
			Tool:   models.ToolArtistCatalog,
			Params: map[string]any{},
			Reason: "Pull more tracks from the requested artists.",
		})
	}
	if len(in.QueryTerms) > 0 {
		calls = append(calls, models.ToolCall{
			Tool:   models.ToolCatalogSearch,
			Params: map[string]any{"limit": count},
			Reason: "Search the catalog with the request's terms.",
		})
	}
	calls = append(calls,
		models.ToolCall{
			Tool:   models.ToolCreative,
			Params: map[string]any{"count": count},
			Reason: "Generate replacements matching the original request.",
		},
		models.ToolCall{
			Tool:   models.ToolDiversity,
			Params: map[string]any{"avoid_consecutive_same_artist": true, "total_target": count},
			Reason: "Keep the backfill varied.",
		},
	)

	return models.ExecutionPlan{
		Thinking:    []string{"Backfilling the playlist without disturbing what is already there."},
		Calls:       calls,
		TotalTarget: count,
	}
}

func filterByGenre(tracks []models.CandidateTrack, genres []string) []models.CandidateTrack {
	out := make([]models.CandidateTrack, 0, len(tracks))
	for _, t := range tracks {
		if len(t.Genres) == 0 {
			// no metadata to judge by, keep it
			out = append(out, t)
			continue
		}
		if genresIntersect(t.Genres, genres) {
			out = append(out, t)
		}
	}
	return out
}

func genresIntersect(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.Contains(strings.ToLower(h), strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}

func filterByYear(tracks []models.CandidateTrack, minYear, maxYear int) []models.CandidateTrack {
	out := make([]models.CandidateTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Year == 0 {
			out = append(out, t)
			continue
		}
		if minYear > 0 && t.Year < minYear {
			continue
		}
		if maxYear > 0 && t.Year > maxYear {
			continue
		}
		out = append(out, t)
	}
	return out
}

// unionCapped merges b into a dropping case-insensitive duplicates, capped at
// [models.MaxQueryTerms].
func unionCapped(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
			if len(out) == models.MaxQueryTerms {
				return out
			}
		}
	}
	return out
}
