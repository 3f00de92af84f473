// Package summarizer condenses indexed text into short digests.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// FrequencySummarizer ranks sentences by normalized word frequency,
// filtering stopwords, and keeps the top ones in original order.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns at most maxSentences sentences of text, chosen by
// frequency score. A non-positive maxSentences defaults to 5.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokenize(sent)
		for _, tok := range tokens[i] {
			if _, skip := s.stopwords[tok]; skip {
				continue
			}
			freq[tok]++
		}
	}

	maxFreq := 0.0
	for _, v := range freq {
		if v > maxFreq {
			maxFreq = v
		}
	}
	if maxFreq > 0 {
		for tok, v := range freq {
			freq[tok] = v / maxFreq
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range tokens[i] {
			total += freq[tok]
		}
		// Length normalization keeps long sentences from dominating.
		if n := float64(len(tokens[i])); n > 0 {
			total /= math.Sqrt(n)
		}
		ranked[i] = scored{i, total}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if maxSentences > len(ranked) {
		maxSentences = len(ranked)
	}
	picked := make([]int, maxSentences)
	for i := range picked {
		picked[i] = ranked[i].idx
	}
	sort.Ints(picked)

	out := make([]string, 0, len(picked))
	for _, idx := range picked {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

func (s *FrequencySummarizer) tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
