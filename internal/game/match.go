package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Articles and prepositions across a few common languages, ignored by the
// looser matching tiers. These values are load-bearing for score
// reproducibility; do not tune them.
var stopWords = map[string]struct{}{
	"the": {}, "of": {}, "a": {}, "an": {}, "in": {}, "on": {},
	"le": {}, "la": {}, "el": {}, "de": {}, "di": {}, "du": {},
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases, strips diacritics and punctuation down to
// [a-z0-9 ], and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MatchQuality grades a free-text guess against the reference answer,
// returning a quality in [0,1]. Pure and deterministic: equal inputs always
// produce equal output. The tiers form a ranked ladder; the first rule that
// fires wins.
func MatchQuality(guess, answer string) float64 {
	g := Normalize(guess)
	a := Normalize(answer)
	if g == "" || a == "" {
		return 0
	}

	// Exact or guess covering the whole answer.
	if g == a || strings.Contains(g, a) {
		return 1.0
	}

	// Guess is a substantial prefix/suffix/infix of the answer.
	if strings.Contains(a, g) && float64(len(g)) >= 0.7*float64(len(a)) {
		return 0.9
	}

	// Whole-string typo tolerance.
	switch r := editRatio(g, a); {
	case r <= 0.15:
		return 0.9
	case r <= 0.25:
		return 0.8
	case r <= 0.35:
		return 0.7
	}

	// Same comparison with articles/prepositions removed.
	gs, as := stripStopWords(g), stripStopWords(a)
	if gs != "" && as != "" {
		if gs == as {
			return 0.95
		}
		switch r := editRatio(gs, as); {
		case r <= 0.2:
			return 0.85
		case r <= 0.35:
			return 0.7
		}
	}

	// Token-level matching against the answer's key words.
	if q := tokenQuality(g, a); q > 0 {
		return q
	}

	// Partial containment fallback.
	if strings.Contains(a, g) && float64(len(g)) >= 0.4*float64(len(a)) {
		return 0.4
	}

	// Consonant-skeleton comparison for heavily misspelled guesses.
	gv, av := stripVowels(g), stripVowels(a)
	if len(gv) >= 3 && len(av) >= 3 && editRatio(gv, av) <= 0.2 {
		return 0.65
	}

	return 0
}

// tokenQuality matches each answer key word against the guess tokens and
// grades by the fraction of key words covered.
func tokenQuality(g, a string) float64 {
	keyWords := make([]string, 0, 4)
	for _, tok := range strings.Fields(a) {
		if _, stop := stopWords[tok]; stop || len(tok) <= 2 {
			continue
		}
		keyWords = append(keyWords, tok)
	}
	if len(keyWords) == 0 {
		return 0
	}

	guessTokens := make([]string, 0, 4)
	for _, tok := range strings.Fields(g) {
		if len(tok) > 2 {
			guessTokens = append(guessTokens, tok)
		}
	}

	matched := 0
	for _, kw := range keyWords {
		for _, tok := range guessTokens {
			if editRatio(tok, kw) <= 0.3 {
				matched++
				break
			}
		}
	}

	switch wordRatio := float64(matched) / float64(len(keyWords)); {
	case wordRatio >= 1.0:
		return 0.85
	case wordRatio >= 0.6:
		return 0.6
	case wordRatio >= 0.4:
		return 0.4
	}
	return 0
}

func stripStopWords(s string) string {
	kept := make([]string, 0, 4)
	for _, tok := range strings.Fields(s) {
		if _, stop := stopWords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func stripVowels(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// editRatio is the Levenshtein distance divided by the longer length.
func editRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein(ra, rb)) / float64(longest)
}

// levenshtein is the standard full dynamic-programming edit distance with
// unit insert/delete/substitute costs. Scores depend on exact distances, so
// no shortcuts.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
