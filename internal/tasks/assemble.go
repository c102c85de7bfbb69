package tasks

import (
	"math/rand"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// AssembleOptions come from the plan's trailing diversity-adjustment call.
type AssembleOptions struct {
	Shuffle          bool
	AvoidConsecutive bool
	Seed             int64 // shuffle seed; 0 means unseeded
}

// Assembler turns raw candidate batches into the final playlist: dedup,
// anti-consecutive interleave, optional shuffle, exact-size truncation.
type Assembler struct {
	logger *log.Logger
}

// NewAssembler constructs an Assembler.
func NewAssembler(logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Assembler{logger: logger}
}

// Assemble builds an [models.AssembledPlaylist] of at most target tracks.
// Duplicates are dropped first-occurrence-wins, the interleave runs before
// any shuffle, and a post-shuffle pass repairs adjacent same-artist
// collisions so the interleave invariant survives randomization. A shortfall
// is recorded, never padded.
func (a *Assembler) Assemble(candidates []models.CandidateTrack, target int, opts AssembleOptions) *models.AssembledPlaylist {
	tracks := dedupeByID(candidates)

	if opts.AvoidConsecutive {
		tracks = interleaveByArtist(tracks)
	}

	if opts.Shuffle {
		rng := newRNG(opts.Seed)
		rng.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
		if opts.AvoidConsecutive {
			tracks = repairAdjacent(tracks)
		}
	}

	if len(tracks) > target {
		tracks = tracks[:target]
		if opts.AvoidConsecutive {
			tracks = repairAdjacent(tracks)
		}
	}

	shortfall := 0
	if len(tracks) < target {
		shortfall = target - len(tracks)
		a.logger.Warn("assembled playlist is short of target", "target", target, "delivered", len(tracks))
	}

	return &models.AssembledPlaylist{
		ID:                 shared.GenerateID(),
		Tracks:             tracks,
		ArtistDistribution: artistDistribution(tracks),
		Relaxations:        []models.RelaxationStep{},
		Target:             target,
		Shortfall:          shortfall,
	}
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(seed))
}

// dedupeByID drops later duplicates of a canonical ID, keeping input order.
func dedupeByID(candidates []models.CandidateTrack) []models.CandidateTrack {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]models.CandidateTrack, 0, len(candidates))
	for _, t := range candidates {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// interleaveByArtist reorders tracks so no two neighbors share a leading
// artist where combinatorially possible. Tracks queue per artist in input
// order; queues are drained round-robin, largest first, so the dominant
// artist spreads out as far as supply allows. Fewer than two distinct
// artists leaves the input order untouched.
func interleaveByArtist(tracks []models.CandidateTrack) []models.CandidateTrack {
	if len(tracks) < 2 {
		return tracks
	}

	queues := map[string][]models.CandidateTrack{}
	order := []string{}
	for _, t := range tracks {
		lead := t.LeadArtist()
		if _, ok := queues[lead]; !ok {
			order = append(order, lead)
		}
		queues[lead] = append(queues[lead], t)
	}
	if len(order) < 2 {
		return tracks
	}

	// stable: larger queues first, first appearance breaks ties
	firstSeen := make(map[string]int, len(order))
	for i, lead := range order {
		firstSeen[lead] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if len(queues[order[i]]) != len(queues[order[j]]) {
			return len(queues[order[i]]) > len(queues[order[j]])
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	out := make([]models.CandidateTrack, 0, len(tracks))
	for len(out) < len(tracks) {
		progressed := false
		for _, lead := range order {
			q := queues[lead]
			if len(q) == 0 {
				continue
			}
			queues[lead] = q[1:]
			out = append(out, q[0])
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// repairAdjacent breaks runs of the same leading artist left behind by
// shuffling or truncation. Forward swaps handle most runs in place; runs
// near the tail can lack a forward swap partner, so any list still carrying
// a collision is re-interleaved, which separates artists whenever the
// counts allow. Irreducible runs stay.
func repairAdjacent(tracks []models.CandidateTrack) []models.CandidateTrack {
	for i := 1; i < len(tracks); i++ {
		if tracks[i].LeadArtist() != tracks[i-1].LeadArtist() {
			continue
		}
		for j := i + 1; j < len(tracks); j++ {
			if tracks[j].LeadArtist() != tracks[i-1].LeadArtist() {
				tracks[i], tracks[j] = tracks[j], tracks[i]
				break
			}
		}
	}

	if hasAdjacentArtists(tracks) {
		return interleaveByArtist(tracks)
	}
	return tracks
}

func hasAdjacentArtists(tracks []models.CandidateTrack) bool {
	for i := 1; i < len(tracks); i++ {
		if tracks[i].LeadArtist() == tracks[i-1].LeadArtist() {
			return true
		}
	}
	return false
}

// artistDistribution counts tracks per leading artist over the final list.
func artistDistribution(tracks []models.CandidateTrack) map[string]int {
	dist := make(map[string]int, len(tracks))
	for _, t := range tracks {
		dist[t.LeadArtist()]++
	}
	return dist
}
