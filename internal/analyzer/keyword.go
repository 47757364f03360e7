// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package analyzer

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/quillfeed/quillfeed/internal/model"
)

// englishStopwords are excluded from keyword extraction. The list is
// deliberately small; the keyword path is a degraded fallback, not a
// precision instrument.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "she": {}, "that": {}, "the": {}, "their": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"which": {}, "with": {}, "you": {},
}

// KeywordAnalyzer is the frequency-based fallback analyzer. It derives
// topic scores from term frequency and estimates reading level from
// surface features (word and sentence length for alphabetic languages,
// kanji density for Japanese). Results are always LowConfidence.
type KeywordAnalyzer struct {
	language string
}

// NewKeywordAnalyzer creates a fallback analyzer for a language.
func NewKeywordAnalyzer(language string) *KeywordAnalyzer {
	return &KeywordAnalyzer{language: language}
}

// Analyze implements ContentAnalyzer.
func (k *KeywordAnalyzer) Analyze(_ context.Context, _ string, text string) (*model.Analysis, error) {
	var analysis *model.Analysis
	if k.language == "ja" {
		analysis = analyzeJapanese(text)
	} else {
		analysis = analyzeAlphabetic(text)
	}
	analysis.LowConfidence = true
	return analysis, nil
}

// analyzeAlphabetic handles whitespace-delimited languages.
func analyzeAlphabetic(text string) *model.Analysis {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	freq := make(map[string]int)
	var totalLen int
	for _, w := range words {
		totalLen += len(w)
		if _, stop := englishStopwords[w]; stop || len(w) < 3 {
			continue
		}
		freq[w]++
	}

	topics, phrases := topTerms(freq, 8)

	level := model.LevelIntermediate
	if len(words) > 0 {
		avgWordLen := float64(totalLen) / float64(len(words))
		sentences := countSentences(text)
		wordsPerSentence := float64(len(words)) / float64(sentences)
		// Longer words and longer sentences read harder. Anchored so
		// ~4.5-char words in ~15-word sentences land at intermediate.
		level = 1 + (avgWordLen-3)*0.8 + (wordsPerSentence-8)*0.08
		level = clampLevel(level)
	}

	return &model.Analysis{
		TopicScores:       topics,
		ReadingLevelScore: level,
		KeyPhrases:        phrases,
	}
}

// analyzeJapanese handles unsegmented text with character bigrams.
func analyzeJapanese(text string) *model.Analysis {
	runes := []rune(text)

	freq := make(map[string]int)
	var kanji, counted int
	for i, r := range runes {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		counted++
		if unicode.Is(unicode.Han, r) {
			kanji++
		}
		if i+1 < len(runes) && unicode.Is(unicode.Han, r) && unicode.Is(unicode.Han, runes[i+1]) {
			freq[string(runes[i:i+2])]++
		}
	}

	topics, phrases := topTerms(freq, 8)

	level := model.LevelIntermediate
	if counted > 0 {
		// Kanji-dense text reads harder; roughly 30% density is
		// ordinary prose.
		density := float64(kanji) / float64(counted)
		level = clampLevel(1 + density*8)
	}

	return &model.Analysis{
		TopicScores:       topics,
		ReadingLevelScore: level,
		KeyPhrases:        phrases,
	}
}

// topTerms returns the n most frequent terms as normalized topic
// scores plus the raw phrase list, ties broken lexicographically.
func topTerms(freq map[string]int, n int) (map[string]float64, []string) {
	if len(freq) == 0 {
		return map[string]float64{}, nil
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}

	max := freq[terms[0]]
	scores := make(map[string]float64, len(terms))
	for _, term := range terms {
		scores[term] = float64(freq[term]) / float64(max)
	}
	return scores, terms
}

func countSentences(text string) int {
	n := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?") +
		strings.Count(text, "。")
	if n == 0 {
		return 1
	}
	return n
}

func clampLevel(level float64) float64 {
	if level < model.LevelBeginner {
		return model.LevelBeginner
	}
	if level > model.LevelNative {
		return model.LevelNative
	}
	return level
}
