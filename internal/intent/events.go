package intent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/models"
)

// eventDescriptors name the event kind rather than the event itself. They
// signal an event request but never belong to the extracted name.
var eventDescriptors = map[string]struct{}{
	"festival":  {},
	"fest":      {},
	"lineup":    {},
	"cartel":    {},
	"concierto": {},
	"concert":   {},
	"tour":      {},
	"gira":      {},
	"edicion":   {},
	"edition":   {},
}

// eventKeywords is the fixed festival-name vocabulary. Hits against it are
// the primary signal that a prompt references a live event.
var eventKeywords = map[string]struct{}{
	"sound":         {},
	"primavera":     {},
	"coachella":     {},
	"lollapalooza":  {},
	"tomorrowland":  {},
	"glastonbury":   {},
	"sonar":         {},
	"arenal":        {},
	"roskilde":      {},
	"riverland":     {},
	"vina":          {},
	"benicassim":    {},
	"ultra":         {},
	"creamfields":   {},
	"rockinrio":     {},
	"medusa":        {},
	"bilbao":        {},
	"madcool":       {},
	"axe":           {},
	"ceremonia":     {},
	"estereopicnic": {},
}

// fillerWords are stripped from the left edge of a prompt before the event
// name is located. Intent verbs, articles and generic request nouns.
var fillerWords = map[string]struct{}{
	"necesito": {}, "quiero": {}, "dame": {}, "ponme": {}, "hazme": {},
	"para": {}, "de": {}, "del": {}, "el": {}, "la": {}, "los": {}, "las": {},
	"un": {}, "una": {}, "unas": {}, "unos": {}, "con": {}, "por": {},
	"playlist": {}, "lista": {}, "musica": {}, "música": {}, "canciones": {},
	"i": {}, "need": {}, "want": {}, "make": {}, "give": {}, "me": {},
	"a": {}, "the": {}, "some": {}, "songs": {}, "music": {}, "for": {},
}

var (
	fourDigitYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	twoDigitYear  = regexp.MustCompile(`\b\d{2}\b`)
)

// twoDigitPivot decides the century of a 2-digit year: values at or below it
// resolve to the 2000s, above it to the 1900s.
const twoDigitPivot = 30

// maxQueryVariants caps the generated search-query list.
const maxQueryVariants = 10

// nowYear is swapped out by tests.
var nowYear = func() int { return time.Now().Year() }

// ExtractEvent detects a festival or event reference inside the raw prompt
// and, when found, returns the normalized [models.FestivalRef]. The second
// return is false when the prompt does not look like an event request.
func ExtractEvent(prompt string) (*models.FestivalRef, bool) {
	tokens := strings.Fields(prompt)
	if len(tokens) == 0 {
		return nil, false
	}

	if !looksLikeEvent(tokens) {
		return nil, false
	}

	year, hadYear := extractYear(prompt)

	name := extractName(tokens)
	if name == "" {
		return nil, false
	}

	return &models.FestivalRef{
		Name:          name,
		Year:          year,
		QueryVariants: queryVariants(prompt, name, year, hadYear),
	}, true
}

// looksLikeEvent checks the two detection signals: a vocabulary hit, or a
// short prompt with no genre keyword (a bare proper-noun lookup).
func looksLikeEvent(tokens []string) bool {
	genreHit := false
	for _, tok := range tokens {
		folded := foldToken(tok)
		if _, ok := eventKeywords[folded]; ok {
			return true
		}
		if _, ok := eventDescriptors[folded]; ok {
			return true
		}
		if _, ok := genreVocabulary[folded]; ok {
			genreHit = true
		}
	}
	return len(tokens) <= 3 && !genreHit
}

// extractName strips left-edge filler, removes year and descriptor tokens,
// then scans
// consecutive word windows of length 1 to 4 for the subsequence with the most
// vocabulary hits. When no window scores, the first three remaining tokens
// stand in.
func extractName(tokens []string) string {
	start := 0
	for start < len(tokens) {
		if _, filler := fillerWords[foldToken(tokens[start])]; !filler {
			break
		}
		start++
	}

	remaining := make([]string, 0, len(tokens)-start)
	for _, tok := range tokens[start:] {
		if fourDigitYear.MatchString(tok) || isBareTwoDigit(tok) {
			continue
		}
		if _, descriptor := eventDescriptors[foldToken(tok)]; descriptor {
			continue
		}
		remaining = append(remaining, strings.Trim(tok, ",.;:!?¿¡"))
	}
	if len(remaining) == 0 {
		return ""
	}

	// smallest window with the most vocabulary hits wins; windows edged by
	// filler never qualify
	bestScore := 0
	var best []string
	for size := 1; size <= 4; size++ {
		for i := 0; i+size <= len(remaining); i++ {
			window := remaining[i : i+size]
			if _, filler := fillerWords[foldToken(window[0])]; filler {
				continue
			}
			if _, filler := fillerWords[foldToken(window[size-1])]; filler {
				continue
			}
			score := 0
			for _, tok := range window {
				if _, ok := eventKeywords[foldToken(tok)]; ok {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				best = window
			}
		}
	}

	if bestScore == 0 {
		n := min(3, len(remaining))
		best = remaining[:n]
	}

	return strings.Join(best, " ")
}

// extractYear resolves the event year: a 4-digit match first, then a 2-digit
// match with the century pivot, then the current year. The second return
// reports whether a year was actually present in the prompt.
func extractYear(prompt string) (int, bool) {
	if m := fourDigitYear.FindString(prompt); m != "" {
		var year int
		fmt.Sscanf(m, "%d", &year)
		return year, true
	}

	for _, m := range twoDigitYear.FindAllString(prompt, -1) {
		var yy int
		fmt.Sscanf(m, "%d", &yy)
		if yy <= twoDigitPivot {
			return 2000 + yy, true
		}
		return 1900 + yy, true
	}

	return nowYear(), false
}

// queryVariants produces the ordered, deduplicated search-query list. The
// unmodified raw prompt always leads.
func queryVariants(raw, name string, year int, hadYear bool) []string {
	yearStr := fmt.Sprintf("%d", year)
	candidates := []string{
		strings.TrimSpace(raw),
		name,
		name + " " + yearStr,
		name + " " + yearStr + " lineup",
		name + " " + yearStr + " cartel",
		name + " lineup",
		name + " cartel",
		name + " official",
		name + " festival",
	}
	if !hadYear {
		// year was defaulted, so bare-name variants go ahead of dated ones
		candidates = []string{
			strings.TrimSpace(raw),
			name,
			name + " lineup",
			name + " cartel",
			name + " " + yearStr,
			name + " " + yearStr + " lineup",
			name + " official",
			name + " festival",
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, c)
		if len(variants) == maxQueryVariants {
			break
		}
	}
	return variants
}

func isBareTwoDigit(tok string) bool {
	trimmed := strings.Trim(tok, ",.;:!?")
	if len(trimmed) != 2 {
		return false
	}
	return twoDigitYear.MatchString(trimmed)
}

// foldToken lowercases and strips punctuation for vocabulary membership tests.
func foldToken(tok string) string {
	return strings.Trim(strings.ToLower(tok), ",.;:!?¿¡()\"'")
}
