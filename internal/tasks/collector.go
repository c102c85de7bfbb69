package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultSearchLimit  = 20
	defaultRateLimit    = 8.0
	maxReferenceArtists = 5
	maxQueriesPerCall   = 8
	creativeSearchDepth = 5
)

const creativeSystemPrompt = "You suggest real, existing songs for a playlist request. " +
	"Respond with ONLY a JSON object of the form {\"tracks\": [{\"title\": \"...\", \"artist\": \"...\"}]}. " +
	"Never invent songs and never repeat a suggestion."

// languageSuffixes turn a strict language constraint into a search-term
// suffix, the only lever the catalog exposes for language.
var languageSuffixes = map[string]string{
	"es": "español", "en": "english", "pt": "português",
	"fr": "français", "it": "italiano", "ko": "korean", "ja": "japanese",
}

// CollectOptions carries per-request exclusions plus the toggles the
// relaxation engine loosens under scarcity.
type CollectOptions struct {
	Blacklist        models.Blacklist
	ExcludeIDs       map[string]struct{}
	ExactArtistMatch bool // creative resolution must verify the artist
	PinFestivalYear  bool // festival queries stay pinned to the referenced year
}

// DefaultCollectOptions returns the strict starting point for a fresh run.
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{
		Blacklist:        models.Blacklist{},
		ExcludeIDs:       map[string]struct{}{},
		ExactArtistMatch: true,
		PinFestivalYear:  true,
	}
}

// Collector executes plan tool calls against the catalog and generator.
// Adapter failures are non-fatal: a failed step yields zero candidates and
// the pipeline continues.
type Collector struct {
	catalog   services.Catalog
	generator services.Generator
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewCollector constructs a Collector. rateLimit is catalog requests per
// second; non-positive values fall back to the default.
func NewCollector(catalog services.Catalog, generator services.Generator, logger *log.Logger, rateLimit float64) *Collector {
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Collector{
		catalog:   catalog,
		generator: generator,
		limiter:   rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:    logger,
	}
}

// Collect runs every retrieval call of the plan and returns the concatenated
// candidate batches in plan order. Catalog-backed calls are read-only and
// independent, so they run concurrently; results keep their call's slot so
// output order stays deterministic.
func (c *Collector) Collect(ctx context.Context, progress chan<- ProgressUpdate, plan models.ExecutionPlan, in models.Intent, opts CollectOptions) []models.CandidateTrack {
	batches := make([][]models.CandidateTrack, len(plan.Calls))

	total := 0
	for _, call := range plan.Calls {
		if call.Tool != models.ToolDiversity {
			total++
		}
	}

	var wg sync.WaitGroup
	step := 0
	for i, call := range plan.Calls {
		if call.Tool == models.ToolDiversity {
			// not a collection step; the assembler owns it
			continue
		}

		step++
		sendProgress(progress, collectingUpdate(step, total, call.Tool))
		wg.Add(1)
		go func(slot int, call models.ToolCall) {
			defer wg.Done()
			tracks, err := c.collectCall(ctx, call, in, opts)
			if err != nil {
				c.logger.Warn("collection step yielded nothing", "tool", string(call.Tool), "err", err)
				return
			}
			batches[slot] = tracks
		}(i, call)
	}
	wg.Wait()

	out := []models.CandidateTrack{}
	for _, batch := range batches {
		out = append(out, batch...)
	}
	return out
}

func (c *Collector) collectCall(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions) ([]models.CandidateTrack, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog configured", shared.ErrServiceUnavailable)
	}

	switch call.Tool {
	case models.ToolArtistCatalog:
		return c.artistLookup(ctx, call, in, opts, models.ToolArtistCatalog)
	case models.ToolCollaboration:
		return c.collaborationLookup(ctx, call, in, opts)
	case models.ToolSimilarStyle:
		return c.similarStyleLookup(ctx, call, in, opts)
	case models.ToolCreative:
		return c.creativeGeneration(ctx, call, in, opts)
	case models.ToolCatalogSearch:
		return c.catalogSearch(ctx, call, in, opts)
	case models.ToolDiversity:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: tool %q", shared.ErrInvalidInput, string(call.Tool))
}

// artistLookup resolves each reference artist and pulls their top tracks.
func (c *Collector) artistLookup(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions, source models.Tool) ([]models.CandidateTrack, error) {
	artists := referenceArtists(call, in)
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: no reference artists", shared.ErrMissingArgument)
	}

	out := []models.CandidateTrack{}
	for _, name := range artists {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		id, err := c.catalog.SearchArtistID(ctx, name)
		if err != nil {
			c.logger.Warn("artist not found in catalog", "artist", name, "err", err)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		tracks, err := c.catalog.ArtistTopTracks(ctx, id)
		if err != nil {
			c.logger.Warn("top tracks lookup failed", "artist", name, "err", err)
			continue
		}
		for _, t := range tracks {
			t.Source = source
			if admit(t, in, opts) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// collaborationLookup keeps only multi-artist tracks from the reference
// artists' catalogs, then widens with a "feat" search per artist.
func (c *Collector) collaborationLookup(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions) ([]models.CandidateTrack, error) {
	all, err := c.artistLookup(ctx, call, in, opts, models.ToolCollaboration)
	if err != nil {
		return nil, err
	}

	out := []models.CandidateTrack{}
	for _, t := range all {
		if len(t.Artists) >= 2 {
			out = append(out, t)
		}
	}

	for _, name := range referenceArtists(call, in) {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		hits, err := c.catalog.SearchTracks(ctx, name+" feat", defaultSearchLimit)
		if err != nil {
			c.logger.Warn("collaboration search failed", "artist", name, "err", err)
			continue
		}
		for _, t := range hits {
			t.Source = models.ToolCollaboration
			if len(t.Artists) >= 2 && artistListContains(t.Artists, name) && admit(t, in, opts) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// similarStyleLookup approximates a style neighborhood by combining the
// reference artists' catalogs with genre searches.
func (c *Collector) similarStyleLookup(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions) ([]models.CandidateTrack, error) {
	out := []models.CandidateTrack{}

	if tracks, err := c.artistLookup(ctx, call, in, opts, models.ToolSimilarStyle); err == nil {
		out = append(out, tracks...)
	}

	limit := call.IntParam("limit", defaultSearchLimit)
	for _, genre := range in.Genres {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		hits, err := c.catalog.SearchTracks(ctx, genre, limit)
		if err != nil {
			c.logger.Warn("genre search failed", "genre", genre, "err", err)
			continue
		}
		for _, t := range hits {
			t.Source = models.ToolSimilarStyle
			if admit(t, in, opts) {
				out = append(out, t)
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no style references", shared.ErrMissingArgument)
	}
	return out, nil
}

// creativeSuggestions is the wire shape requested from the generator.
type creativeSuggestions struct {
	Tracks []struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	} `json:"tracks"`
}

// creativeGeneration asks the generator for title/artist pairs and resolves
// each against the catalog, exact artist match first, fuzzy second.
func (c *Collector) creativeGeneration(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions) ([]models.CandidateTrack, error) {
	if c.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", shared.ErrServiceUnavailable)
	}

	count := call.IntParam("count", in.TargetTracks)
	if count <= 0 {
		count = in.TargetTracks
	}

	var suggestions creativeSuggestions
	prompt := creativePrompt(in, count)
	if err := services.GenerateJSON(ctx, c.generator, creativeSystemPrompt, prompt, &suggestions); err != nil {
		return nil, err
	}

	out := []models.CandidateTrack{}
	for _, s := range suggestions.Tracks {
		if s.Title == "" || s.Artist == "" {
			continue
		}
		track, ok := c.resolveSuggestion(ctx, s.Title, s.Artist, opts.ExactArtistMatch)
		if !ok {
			continue
		}
		track.Source = models.ToolCreative
		if admit(track, in, opts) {
			out = append(out, track)
		}
		if len(out) == count {
			break
		}
	}
	return out, nil
}

// resolveSuggestion finds the catalog track for a generated title/artist
// pair. The first hit whose artist list contains a case-insensitive match
// wins; without exact matching the top search hit is accepted.
func (c *Collector) resolveSuggestion(ctx context.Context, title, artist string, exact bool) (models.CandidateTrack, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.CandidateTrack{}, false
	}

	hits, err := c.catalog.SearchTracks(ctx, title+" "+artist, creativeSearchDepth)
	if err != nil || len(hits) == 0 {
		return models.CandidateTrack{}, false
	}

	for _, hit := range hits {
		if artistListContains(hit.Artists, artist) && titleMatches(title, hit.Title) {
			return hit, true
		}
	}
	for _, hit := range hits {
		if artistListContains(hit.Artists, artist) {
			return hit, true
		}
	}
	if !exact {
		return hits[0], true
	}
	return models.CandidateTrack{}, false
}

// catalogSearch runs the free-text queries from the call parameters, the
// intent's query terms, or the festival variants.
func (c *Collector) catalogSearch(ctx context.Context, call models.ToolCall, in models.Intent, opts CollectOptions) ([]models.CandidateTrack, error) {
	queries := searchQueries(call, in, opts)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no search queries", shared.ErrMissingArgument)
	}

	limit := call.IntParam("limit", defaultSearchLimit)

	out := []models.CandidateTrack{}
	for _, q := range queries {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		hits, err := c.catalog.SearchTracks(ctx, q, limit)
		if err != nil {
			c.logger.Warn("catalog search failed", "query", q, "err", err)
			continue
		}
		for _, t := range hits {
			t.Source = models.ToolCatalogSearch
			if admit(t, in, opts) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// searchQueries assembles the query list for a catalog-search call. A strict
// language constraint is expressed as a query suffix; an unpinned festival
// year adds adjacent-edition variants.
func searchQueries(call models.ToolCall, in models.Intent, opts CollectOptions) []string {
	queries := []string{}
	if q := call.StringParam("query", ""); q != "" {
		queries = append(queries, q)
	} else {
		queries = append(queries, in.QueryTerms...)
	}

	if in.Festival != nil && !opts.PinFestivalYear {
		year := strconv.Itoa(in.Festival.Year)
		for _, v := range in.Festival.QueryVariants {
			if !strings.Contains(v, year) {
				continue
			}
			queries = append(queries,
				strings.ReplaceAll(v, year, strconv.Itoa(in.Festival.Year-1)),
				strings.ReplaceAll(v, year, strconv.Itoa(in.Festival.Year+1)),
			)
		}
	}

	if in.StrictLanguage && len(in.Languages) > 0 {
		if suffix, ok := languageSuffixes[in.Languages[0]]; ok {
			for i, q := range queries {
				if !strings.Contains(strings.ToLower(q), suffix) {
					queries[i] = q + " " + suffix
				}
			}
		}
	}

	if len(queries) > maxQueriesPerCall {
		queries = queries[:maxQueriesPerCall]
	}
	return queries
}

// creativePrompt renders the intent for the suggestion request.
func creativePrompt(in models.Intent, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d songs", count)
	if len(in.Genres) > 0 {
		fmt.Fprintf(&b, " in these genres: %s", strings.Join(in.Genres, ", "))
	}
	if in.Activity != "" {
		fmt.Fprintf(&b, ", suited for %s", in.Activity)
	}
	if len(in.Vibes) > 0 {
		fmt.Fprintf(&b, ", with a %s feel", strings.Join(in.Vibes, ", "))
	}
	if !in.Era.IsZero() {
		fmt.Fprintf(&b, ", released between %d and %d", in.Era.MinYear, in.Era.MaxYear)
	}
	if len(in.Languages) > 0 {
		fmt.Fprintf(&b, ", sung in: %s", strings.Join(in.Languages, ", "))
	}
	if len(in.ExcludeArtists) > 0 {
		fmt.Fprintf(&b, ". Never include these artists: %s", strings.Join(in.ExcludeArtists, ", "))
	}
	if in.Festival != nil {
		fmt.Fprintf(&b, ". The request is about %s (%d); favor its lineup", in.Festival.Name, in.Festival.Year)
	}
	b.WriteString(".")

	if encoded, err := json.Marshal(in); err == nil {
		fmt.Fprintf(&b, "\nFull intent: %s", encoded)
	}
	return b.String()
}

// referenceArtists picks the artists a lookup call should target: explicit
// call parameters first, then the intent's include list, then its seeds.
func referenceArtists(call models.ToolCall, in models.Intent) []string {
	names := []string{}
	if raw, ok := call.Params["artists"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				names = append(names, s)
			}
		}
	}
	if s := call.StringParam("artist", ""); s != "" {
		names = append(names, s)
	}
	if len(names) == 0 {
		names = append(names, in.IncludeArtists...)
	}
	if len(names) == 0 {
		names = append(names, in.Seeds...)
	}
	if len(names) > maxReferenceArtists {
		names = names[:maxReferenceArtists]
	}
	return names
}

// admit applies the deterministic per-track filters every adapter honors:
// blacklist, explicit exclusions, excluded artists, clean-only, and the
// era/tempo windows when the candidate carries the needed metadata.
func admit(t models.CandidateTrack, in models.Intent, opts CollectOptions) bool {
	if t.ID == "" {
		return false
	}
	if opts.Blacklist.Has(t.ID) {
		return false
	}
	if _, excluded := opts.ExcludeIDs[t.ID]; excluded {
		return false
	}
	for _, name := range in.ExcludeArtists {
		if artistListContains(t.Artists, name) {
			return false
		}
	}
	if in.Rules.CleanOnly && t.Explicit {
		return false
	}
	if !in.Era.IsZero() && t.Year > 0 {
		if (in.Era.MinYear > 0 && t.Year < in.Era.MinYear) || (in.Era.MaxYear > 0 && t.Year > in.Era.MaxYear) {
			return false
		}
	}
	if !in.Tempo.IsZero() && t.BPM > 0 {
		if (in.Tempo.MinBPM > 0 && t.BPM < float64(in.Tempo.MinBPM)) || (in.Tempo.MaxBPM > 0 && t.BPM > float64(in.Tempo.MaxBPM)) {
			return false
		}
	}
	return true
}
