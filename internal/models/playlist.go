package models

import (
	"maps"
	"slices"
)

// CandidateTrack is a track produced by a collection step. Candidates are
// ephemeral: created per collection call and discarded after assembly except
// for the surviving subset.
type CandidateTrack struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Artists   []string `json:"artists"`    // display names, leading artist first
	ArtistIDs []string `json:"artist_ids"` // catalog identifiers, aligned with Artists where known
	Album     string   `json:"album,omitempty"`
	Duration  int      `json:"duration,omitempty"` // seconds
	Year      int      `json:"year,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Explicit  bool     `json:"explicit,omitempty"`
	BPM       float64  `json:"bpm,omitempty"`
	Energy    float64  `json:"energy,omitempty"`
	Source    Tool     `json:"source"` // which tool produced it
}

// LeadArtist returns the leading artist name, or "" when unknown.
func (t CandidateTrack) LeadArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// RelaxationStep records a single constraint loosening. Steps are accumulated
// as an append-only log for the lifetime of one assembly request.
type RelaxationStep struct {
	Constraint  string `json:"constraint"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	YieldBefore int    `json:"yield_before"`
	YieldAfter  int    `json:"yield_after"`
}

// AssembledPlaylist is the final ordered track sequence together with its
// artist distribution and the relaxation log that produced it. Mutation
// operations return a fresh snapshot rather than editing one in place.
type AssembledPlaylist struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Tracks             []CandidateTrack `json:"tracks"`
	ArtistDistribution map[string]int   `json:"artist_distribution"`
	Relaxations        []RelaxationStep `json:"relaxations"`
	Target             int              `json:"target"`
	Shortfall          int              `json:"shortfall"` // target minus delivered, 0 when size-exact
}

// TrackIDs returns the set of canonical track IDs in the playlist.
func (p *AssembledPlaylist) TrackIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.Tracks))
	for _, t := range p.Tracks {
		ids[t.ID] = struct{}{}
	}
	return ids
}

// Clone returns a deep copy of the playlist snapshot.
func (p *AssembledPlaylist) Clone() *AssembledPlaylist {
	out := *p
	out.Tracks = slices.Clone(p.Tracks)
	out.Relaxations = slices.Clone(p.Relaxations)
	out.ArtistDistribution = maps.Clone(p.ArtistDistribution)
	return &out
}

// Blacklist is the session-scoped set of excluded track identifiers. It only
// grows; replaying an exclusion is a no-op.
type Blacklist map[string]struct{}

// NewBlacklist builds a Blacklist from the given IDs.
func NewBlacklist(ids ...string) Blacklist {
	b := make(Blacklist, len(ids))
	for _, id := range ids {
		b.Add(id)
	}
	return b
}

// Has reports whether id is excluded.
func (b Blacklist) Has(id string) bool {
	_, ok := b[id]
	return ok
}

// Add marks id as excluded. Adding an existing ID is a no-op.
func (b Blacklist) Add(id string) {
	if id != "" {
		b[id] = struct{}{}
	}
}

// Clone returns an independent copy.
func (b Blacklist) Clone() Blacklist {
	return maps.Clone(b)
}
