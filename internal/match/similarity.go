package match

import (
	"math"
	"regexp"
	"strings"
)

// tokenSplitPattern matches the separator runs between alphanumeric tokens.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint is a term-frequency vector with a precomputed norm, built once
// per title and compared pairwise during scoring.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a term-frequency vector over the text's tokens.
// Returns nil when no tokens survive tokenization.
func NewFingerprint(text string) *Fingerprint {
	counts := make(map[string]float64)
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(sum)}
}

// Tokenize splits text into lowercase tokens. Short tokens are kept: game
// titles lean on numerals and short words ("II", "VR", "Go").
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if token == "" {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount reports how many distinct tokens the fingerprint carries.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity returns the cosine of the angle between two term vectors,
// in [0,1]. Nil and zero-norm fingerprints score 0.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(b.tokens) < len(a.tokens) {
		small, large = b, a
	}
	var dot float64
	for token, count := range small.tokens {
		dot += count * large.tokens[token]
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// TitleSimilarity blends token cosine similarity with normalized edit
// distance, weighting whichever signal is stronger. Tokens catch reordered
// words, edit distance catches near-identical spellings the tokenizer splits
// apart.
func TitleSimilarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	cosine := CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
	edit := editSimilarity(a, b)
	if cosine >= edit {
		return 0.7*cosine + 0.3*edit
	}
	return 0.3*cosine + 0.7*edit
}

// editSimilarity converts Levenshtein distance into a [0,1] similarity.
func editSimilarity(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := editDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// editDistance computes the Levenshtein distance over runes with a
// two-row table.
func editDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	previous := make([]int, len(rb)+1)
	current := make([]int, len(rb)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = minInt(
				previous[j]+1,
				current[j-1]+1,
				previous[j-1]+cost,
			)
		}
		previous, current = current, previous
	}
	return previous[len(rb)]
}

func minInt(values ...int) int {
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}
