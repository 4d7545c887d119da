package labeler

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Keyword is a deterministic labeler: the title is the most frequent
// non-stopword tokens of the exemplars. It keeps offline runs and tests
// independent of any model.
type Keyword struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxWords     int
}

// NewKeyword creates the frequency-based labeler.
func NewKeyword() *Keyword {
	return &Keyword{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    stopwords(),
		maxWords:     3,
	}
}

// LabelCluster returns the top tokens of the exemplars by frequency,
// breaking frequency ties alphabetically.
func (k *Keyword) LabelCluster(exemplars []string) (string, error) {
	freq := map[string]int{}
	for _, ex := range exemplars {
		for _, tok := range k.tokenPattern.FindAllString(strings.ToLower(ex), -1) {
			if _, ok := k.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	if len(freq) == 0 {
		return "", errors.New("no tokens in exemplars")
	}
	tokens := make([]string, 0, len(freq))
	for tok := range freq {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > k.maxWords {
		tokens = tokens[:k.maxWords]
	}
	return strings.Join(tokens, " "), nil
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "shall", "may", "not", "such", "can", "will",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
