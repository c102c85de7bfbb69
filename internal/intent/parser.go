// package intent turns free-text playlist requests into structured [models.Intent] values
//
// A keyword/regex heuristic pass always runs. When a generative service is
// available its structured answer is sanity-merged over the heuristic result;
// a generator failure downgrades to the pure-heuristic intent and never fails
// the request.
package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// DefaultTargetTracks is used when the caller requests no explicit count.
const DefaultTargetTracks = 50

const parserSystemPrompt = "You translate playlist requests into a structured JSON intent. " +
	"Extract activity, vibes, genres, included and excluded artists, era years, languages, " +
	"BPM bounds, 0-1 scalars for energy/valence/acousticness/danceability, duration in minutes, " +
	"instrumental_only and clean_only flags, and up to 10 search query terms. " +
	"Return ONLY a JSON object. Omit anything the request does not state."

var (
	bpmRangePattern  = regexp.MustCompile(`(?i)(\d{2,3})\s*-\s*(\d{2,3})\s*bpm`)
	bpmSinglePattern = regexp.MustCompile(`(?i)\b(\d{2,3})\s*bpm\b`)
	decadePattern    = regexp.MustCompile(`\b(19|20)(\d)0s\b`)
	exclusionPattern = regexp.MustCompile(`(?i)\b(?:sin|excepto|without|no)\s+([^,;.]+)`)
)

// generatedIntent is the wire shape requested from the generator. Every field
// is optional; absent fields fall back to the heuristic value during merge.
type generatedIntent struct {
	Activity         string   `json:"activity"`
	Vibes            []string `json:"vibes"`
	Genres           []string `json:"genres"`
	IncludeArtists   []string `json:"include_artists"`
	ExcludeArtists   []string `json:"exclude_artists"`
	MinYear          int      `json:"min_year"`
	MaxYear          int      `json:"max_year"`
	Languages        []string `json:"languages"`
	StrictLanguage   bool     `json:"strict_language"`
	MinBPM           int      `json:"min_bpm"`
	MaxBPM           int      `json:"max_bpm"`
	Energy           float64  `json:"energy"`
	Valence          float64  `json:"valence"`
	Acousticness     float64  `json:"acousticness"`
	Danceability     float64  `json:"danceability"`
	DurationMinutes  int      `json:"duration_minutes"`
	InstrumentalOnly bool     `json:"instrumental_only"`
	CleanOnly        bool     `json:"clean_only"`
	Seeds            []string `json:"seeds"`
	QueryTerms       []string `json:"query_terms"`
}

// Parser builds intents from raw prompts. The generator is optional; a nil
// generator yields purely heuristic intents.
type Parser struct {
	generator services.Generator
	logger    *log.Logger
}

// NewParser constructs a Parser.
func NewParser(generator services.Generator, logger *log.Logger) *Parser {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Parser{generator: generator, logger: logger}
}

// Parse turns a raw prompt and requested track count into an Intent. A zero
// target defaults to [DefaultTargetTracks]; out-of-range targets are clamped.
func (p *Parser) Parse(ctx context.Context, prompt string, target int) (models.Intent, error) {
	if strings.TrimSpace(prompt) == "" {
		return models.Intent{}, fmt.Errorf("%w: prompt is required", shared.ErrEmptyPrompt)
	}
	if target == 0 {
		target = DefaultTargetTracks
	}
	if target < 0 {
		return models.Intent{}, fmt.Errorf("%w: %d", shared.ErrInvalidTarget, target)
	}

	heuristic := HeuristicIntent(prompt, target)

	if p.generator == nil {
		return heuristic, nil
	}

	var generated generatedIntent
	if err := services.GenerateJSON(ctx, p.generator, parserSystemPrompt, prompt, &generated); err != nil {
		p.logger.Warn("intent generator unavailable, using heuristic intent", "err", err)
		return heuristic, nil
	}

	merged := mergeIntents(heuristic, generated)
	if err := merged.Validate(); err != nil {
		p.logger.Warn("merged intent invalid, using heuristic intent", "err", err)
		return heuristic, nil
	}
	return merged, nil
}

// HeuristicIntent runs the keyword/regex fast path on its own. It never
// fails: an unparseable prompt produces an intent holding only the prompt as
// a query term.
func HeuristicIntent(prompt string, target int) models.Intent {
	in := models.NewIntent(target)
	in.Source = models.SourceHeuristic

	lower := strings.ToLower(prompt)
	tokens := strings.Fields(prompt)

	seenGenres := map[string]struct{}{}
	seenVibes := map[string]struct{}{}
	for _, tok := range tokens {
		folded := foldToken(tok)
		if _, ok := genreVocabulary[folded]; ok {
			if _, dup := seenGenres[folded]; !dup {
				seenGenres[folded] = struct{}{}
				in.Genres = append(in.Genres, folded)
			}
		}
		if activity, ok := activityKeywords[folded]; ok && in.Activity == "" {
			in.Activity = activity
		}
		if vibe, ok := vibeKeywords[folded]; ok {
			if _, dup := seenVibes[vibe]; !dup {
				seenVibes[vibe] = struct{}{}
				in.Vibes = append(in.Vibes, vibe)
			}
		}
		if e, ok := energyHints[folded]; ok {
			in.Energy = e
		}
		if v, ok := valenceHints[folded]; ok {
			in.Valence = v
		}
		if folded == "instrumental" {
			in.Rules.InstrumentalOnly = true
		}
		if folded == "acustica" || folded == "acústica" || folded == "acoustic" {
			in.Acousticness = 0.8
		}
	}

	if in.Energy == 0 && in.Activity != "" {
		if e, ok := activityEnergy[in.Activity]; ok {
			in.Energy = e
		}
	}

	if strings.Contains(lower, "clean") || strings.Contains(lower, "limpia") || strings.Contains(lower, "sin groserias") || strings.Contains(lower, "sin groserías") {
		in.Rules.CleanOnly = true
	}

	parseTempo(prompt, &in)
	parseExclusions(prompt, &in)
	parseLanguages(lower, &in)
	parseEra(prompt, &in)

	if ref, ok := ExtractEvent(prompt); ok {
		in.Festival = ref
		in.QueryTerms = appendCapped(in.QueryTerms, ref.QueryVariants...)
	}

	terms := []string{}
	for _, g := range in.Genres {
		if in.Activity != "" {
			terms = append(terms, g+" "+in.Activity)
		}
		terms = append(terms, g)
	}
	for _, v := range in.Vibes {
		terms = append(terms, v)
	}
	if len(terms) == 0 && in.Festival == nil {
		terms = append(terms, strings.TrimSpace(prompt))
	}
	in.QueryTerms = appendCapped(in.QueryTerms, terms...)

	return in
}

// parseTempo reads "160-180 bpm" ranges first, then lone "160 bpm" mentions,
// which become a narrow window around the named tempo.
func parseTempo(prompt string, in *models.Intent) {
	if m := bpmRangePattern.FindStringSubmatch(prompt); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		in.Tempo = models.TempoRange{MinBPM: lo, MaxBPM: hi}
		in.Rules.MinBPM, in.Rules.MaxBPM = lo, hi
		return
	}
	if m := bpmSinglePattern.FindStringSubmatch(prompt); m != nil {
		bpm, _ := strconv.Atoi(m[1])
		in.Tempo = models.TempoRange{MinBPM: bpm - 5, MaxBPM: bpm + 5}
		in.Rules.MinBPM, in.Rules.MaxBPM = bpm-5, bpm+5
	}
}

// parseExclusions reads "sin X" / "excepto X" style negations as artist
// exclusions. A negated genre keyword is ignored rather than treated as an
// artist name.
func parseExclusions(prompt string, in *models.Intent) {
	for _, m := range exclusionPattern.FindAllStringSubmatch(prompt, -1) {
		phrase := strings.TrimSpace(m[1])
		words := strings.Fields(phrase)
		if len(words) == 0 {
			continue
		}
		if len(words) > 4 {
			words = words[:4]
		}
		if _, genre := genreVocabulary[foldToken(words[0])]; genre {
			continue
		}
		if _, filler := fillerWords[foldToken(words[0])]; filler {
			continue
		}
		name := strings.Trim(strings.Join(words, " "), ",.;:!?")
		if name != "" {
			in.ExcludeArtists = append(in.ExcludeArtists, name)
		}
	}
}

// parseLanguages reads language markers and the strictness phrases that make
// the allow-list exclusive.
func parseLanguages(lower string, in *models.Intent) {
	seen := map[string]struct{}{}
	for marker, code := range languageMarkers {
		if strings.Contains(lower, marker) {
			if _, dup := seen[code]; !dup {
				seen[code] = struct{}{}
				in.Languages = append(in.Languages, code)
			}
		}
	}
	if len(in.Languages) == 0 {
		return
	}
	for _, marker := range strictLanguageMarkers {
		if strings.Contains(lower, marker) {
			in.StrictLanguage = true
			return
		}
	}
}

// parseEra reads decade markers like "1980s" into a release-year window; the
// widest span wins when multiple decades appear.
func parseEra(prompt string, in *models.Intent) {
	for _, m := range decadePattern.FindAllStringSubmatch(prompt, -1) {
		decade, _ := strconv.Atoi(m[1] + m[2] + "0")
		if in.Era.MinYear == 0 || decade < in.Era.MinYear {
			in.Era.MinYear = decade
		}
		if decade+9 > in.Era.MaxYear {
			in.Era.MaxYear = decade + 9
		}
	}
}

// mergeIntents lays the generated intent over the heuristic one: any field
// the generator left empty or implausible keeps the heuristic value, and
// query-term lists are unioned under the cap.
func mergeIntents(heuristic models.Intent, g generatedIntent) models.Intent {
	out := heuristic.Clone()
	out.Source = models.SourceMerged

	if g.Activity != "" {
		out.Activity = g.Activity
	}
	if len(g.Vibes) > 0 {
		out.Vibes = g.Vibes
	}
	if len(g.Genres) > 0 {
		out.Genres = g.Genres
	}
	if len(g.IncludeArtists) > 0 {
		out.IncludeArtists = g.IncludeArtists
	}
	if len(g.ExcludeArtists) > 0 {
		out.ExcludeArtists = unionCapped(heuristic.ExcludeArtists, g.ExcludeArtists, 0)
	}
	if g.MinYear > 0 && g.MaxYear >= g.MinYear {
		out.Era = models.EraRange{MinYear: g.MinYear, MaxYear: g.MaxYear}
	}
	if len(g.Languages) > 0 {
		out.Languages = g.Languages
		out.StrictLanguage = g.StrictLanguage
	}
	if plausibleBPM(g.MinBPM, g.MaxBPM) {
		out.Tempo = models.TempoRange{MinBPM: g.MinBPM, MaxBPM: g.MaxBPM}
		out.Rules.MinBPM, out.Rules.MaxBPM = g.MinBPM, g.MaxBPM
	}
	if inUnit(g.Energy) {
		out.Energy = g.Energy
	}
	if inUnit(g.Valence) {
		out.Valence = g.Valence
	}
	if inUnit(g.Acousticness) {
		out.Acousticness = g.Acousticness
	}
	if inUnit(g.Danceability) {
		out.Danceability = g.Danceability
	}
	if g.DurationMinutes > 0 {
		out.DurationMinutes = g.DurationMinutes
	}
	if g.InstrumentalOnly {
		out.Rules.InstrumentalOnly = true
	}
	if g.CleanOnly {
		out.Rules.CleanOnly = true
	}
	if len(g.Seeds) > 0 {
		out.Seeds = g.Seeds
	}
	out.QueryTerms = unionCapped(heuristic.QueryTerms, g.QueryTerms, models.MaxQueryTerms)

	return out
}

func inUnit(v float64) bool { return v > 0 && v <= 1 }

func plausibleBPM(lo, hi int) bool {
	return lo >= 40 && hi <= 260 && lo <= hi
}

// unionCapped merges b into a preserving order and dropping case-insensitive
// duplicates. A limit of 0 means unbounded.
func unionCapped(a, b []string, limit int) []string {
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
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

func appendCapped(existing []string, extra ...string) []string {
	return unionCapped(existing, extra, models.MaxQueryTerms)
}
