// package services defines the capability interfaces the pipeline consumes
//
// Spotify (catalog), Ollama (generative text)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// Catalog defines the read-only music catalog capability. Implementations
// never mutate remote state; playlist publishing belongs to the surrounding
// application.
type Catalog interface {
	// SearchTracks performs a free-text track search and returns up to limit candidates.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)

	// SearchArtistID resolves an artist name to a catalog identifier.
	SearchArtistID(ctx context.Context, name string) (string, error)

	// ArtistTopTracks returns the catalog's top tracks for an artist.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error)

	// Name returns the name of the catalog service (e.g. "Spotify")
	Name() string
}

// Generator defines the generative text capability. Callers treat it as
// opaque: a failure never fails a pipeline run, it downgrades to heuristics.
type Generator interface {
	// Complete sends a system and user prompt and returns the raw completion text.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Name returns the name of the generator backend (e.g. "Ollama")
	Name() string
}

// GenerateJSON asks the generator for a completion and decodes it into out.
// Decode failure is the single recovery point for untyped generator output:
// fenced or prose-wrapped JSON is recovered by slicing the outermost object
// before giving up.
func GenerateJSON(ctx context.Context, g Generator, system, prompt string, out any) error {
	raw, err := g.Complete(ctx, system, prompt)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrGeneratorFailed, err)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return fmt.Errorf("%w: empty completion", shared.ErrGeneratorFailed)
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	embedded, ok := ExtractJSON(text)
	if !ok {
		return fmt.Errorf("%w: completion is not JSON", shared.ErrGeneratorFailed)
	}
	if err := json.Unmarshal([]byte(embedded), out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrGeneratorFailed, err)
	}
	return nil
}

// ExtractJSON slices the outermost JSON object out of text that may wrap it
// in markdown fences or prose. Returns false when no object is present.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
