package services

import (
	"regexp"
	"strings"
)

// Keyword-overlap similarity is the only dedup signal at this layer.
// Embedding-based similarity belongs to the ingestion pipeline, not the
// lifecycle engine.

var (
	tokenSplitRe    = regexp.MustCompile(`\W+`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+\s*`)
	keyStripRe      = regexp.MustCompile(`[^a-z0-9 ]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {},
}

// keywordTokens lowercases the text, splits on non-word boundaries, and
// drops single-character tokens and stopwords.
func keywordTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenSplitRe.Split(strings.ToLower(text), -1) {
		if len(tok) <= 1 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// keywordSimilarity returns the Jaccard index of the keyword sets of
// two texts. Emptiness is checked on the raw inputs before
// tokenization: two empty texts are trivially equal (1.0), exactly one
// empty text is maximally dissimilar (0.0). A text whose tokens are
// all dropped (stopwords, single characters) still counts as content,
// so two such texts compare equal to each other but not to "".
func keywordSimilarity(a, b string) float64 {
	aEmpty := strings.TrimSpace(a) == ""
	bEmpty := strings.TrimSpace(b) == ""
	if aEmpty && bEmpty {
		return 1.0
	}
	if aEmpty || bEmpty {
		return 0.0
	}

	setA := keywordTokens(a)
	setB := keywordTokens(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// mergeContents builds the content of a consolidated episode: the
// sentence-level union of both inputs. Sentences are deduplicated by a
// lowercase, punctuation-stripped key; the original casing of the first
// occurrence wins. The result always ends with terminal punctuation.
func mergeContents(a, b string) string {
	seen := make(map[string]struct{})
	var sentences []string

	for _, text := range []string{a, b} {
		for _, sentence := range sentenceSplitRe.Split(text, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			key := strings.TrimSpace(keyStripRe.ReplaceAllString(strings.ToLower(sentence), ""))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sentences = append(sentences, sentence+".")
		}
	}

	return strings.Join(sentences, " ")
}
