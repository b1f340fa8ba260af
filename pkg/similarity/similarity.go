// Package similarity scores how close two natural-language prompts are.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Score returns the Jaccard similarity of the whitespace token sets of a and b.
// Tokens are lower-cased; repeated words count once. Two empty inputs score 0.
func Score(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// words lower-cases s, blanks out punctuation and splits on whitespace.
func words(s string) []string {
	return strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), " "))
}

// Cosine returns the cosine similarity of the term-frequency vectors of a and b.
// Unlike Score, punctuation is stripped and repeated words add weight.
func Cosine(a, b string) float64 {
	bowA := bagOfWords(words(a))
	bowB := bagOfWords(words(b))

	var dot, magA, magB float64
	for term, fa := range bowA {
		dot += fa * bowB[term]
		magA += fa * fa
	}
	for _, fb := range bowB {
		magB += fb * fb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Floating point can push identical vectors a hair above 1.
	return math.Min(score, 1)
}

func bagOfWords(tokens []string) map[string]float64 {
	bow := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		bow[t]++
	}
	return bow
}

// Match is a candidate text with its similarity to a query.
type Match struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Rank scores every candidate against query with Cosine and returns those
// scoring at least threshold, best first, at most topK of them.
// Equal scores keep candidate order.
func Rank(query string, candidates []string, threshold float64, topK int) []Match {
	var matches []Match
	for _, c := range candidates {
		score := Cosine(query, c)
		if score >= threshold {
			matches = append(matches, Match{Text: c, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
