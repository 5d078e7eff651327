// Package suggest ranks candidate strings by similarity to a given
// input, used for "did you mean" hints on unknown commands and
// player names.
package suggest

import (
	"sort"

	"github.com/agext/levenshtein"
)

const DefaultMinimumSimilarityScore = 0.2

// Score calculates the similarity score in the range of 0..1 of two strings.
// A score of 1 means the strings are identical, and 0 means they have nothing in common.
func Score(given, suggestion string) float64 {
	i := len(given)
	if len(suggestion) < i {
		i = len(suggestion)
	}
	return levenshtein.Similarity(given, suggestion[:i], nil)
}

// Similar returns the candidates scoring at least
// DefaultMinimumSimilarityScore against given, best first.
func Similar(given string, candidates []string) []string {
	return SimilarScore(given, candidates, DefaultMinimumSimilarityScore)
}

// SimilarScore filters and sorts candidates by their similarity score
// against given. Candidates scoring below minScore are dropped; no
// candidates are dropped when minScore >= 1.
func SimilarScore(given string, candidates []string, minScore float64) []string {
	if given == "" {
		return nil
	}
	type scored struct {
		text  string
		score float64
	}
	var result []scored
	for _, text := range candidates {
		score := Score(given, text)
		if score < minScore {
			continue
		}
		result = append(result, scored{text: text, score: score})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].score > result[j].score
	})
	out := make([]string, len(result))
	for i, s := range result {
		out[i] = s.text
	}
	return out
}

// Closest returns the best match, empty if none scores high enough.
func Closest(given string, candidates []string) string {
	matches := Similar(given, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}
