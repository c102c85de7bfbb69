package tasks

import (
	"strings"
	"unicode"
)

// noiseTokens are stripped before comparing titles and artists, covering the
// suffix noise catalogs append to track names.
var noiseTokens = map[string]struct{}{
	"clean": {}, "deluxe": {}, "edition": {}, "edit": {}, "explicit": {},
	"feat": {}, "featuring": {}, "ft": {}, "live": {}, "mix": {}, "mono": {},
	"radio": {}, "remaster": {}, "remastered": {}, "stereo": {}, "version": {},
}

// normalizeMatchInput lowercases, drops bracketed segments and noise tokens,
// and collapses separators for fuzzy comparison.
func normalizeMatchInput(input string) string {
	if input == "" {
		return ""
	}

	lower := strings.ToLower(input)
	filtered := stripBracketedSegments(lower)
	tokens := strings.Fields(cleanSeparators(filtered))

	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, drop := noiseTokens[token]; drop {
			continue
		}
		cleaned = append(cleaned, token)
	}

	return strings.Join(cleaned, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}

	return out.String()
}

func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}

	return out.String()
}

// similarity returns 1 - normalized Levenshtein distance over runes.
func similarity(a string, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		copy(prev, curr)
	}

	return prev[len(rb)]
}

// titleMatches accepts a candidate title when its normalized similarity to
// the requested title clears the threshold.
const minTitleSimilarity = 0.65

func titleMatches(requested, candidate string) bool {
	a := normalizeMatchInput(requested)
	b := normalizeMatchInput(candidate)
	if a == "" || b == "" {
		return false
	}
	return similarity(a, b) >= minTitleSimilarity
}

// artistListContains reports whether any artist in the list matches name
// case-insensitively after normalization.
func artistListContains(artists []string, name string) bool {
	want := normalizeMatchInput(name)
	if want == "" {
		return false
	}
	for _, a := range artists {
		if normalizeMatchInput(a) == want {
			return true
		}
	}
	return false
}
