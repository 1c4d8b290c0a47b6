package extract

import "strings"

func wordTokens(s string) []string {
	parts := reNonWord.Split(strings.ToLower(s), -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tokenOverlap is the fraction of the phrase's words present in vocab
func tokenOverlap(vocab map[string]struct{}, phrase string) float64 {
	words := wordTokens(phrase)
	if len(words) == 0 {
		return 0
	}
	hit := 0
	for _, w := range words {
		if _, ok := vocab[w]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(words))
}

// matchCategory scores every category against the receipt text and returns
// the best one with a positive score. Earlier categories win ties.
func matchCategory(lines []string, categories []string) (string, float64, bool) {
	vocab := make(map[string]struct{})
	for _, w := range wordTokens(strings.Join(lines, " ")) {
		vocab[w] = struct{}{}
	}

	var (
		top   string
		score float64
	)
	for _, cat := range categories {
		if s := tokenOverlap(vocab, cat); s > score {
			top, score = cat, s
		}
	}
	return top, score, score > 0
}
