package dedup

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// normalizeText lowercases s, keeps letters and digits, and collapses every
// run of whitespace or separators into a single space.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// TitleSimilarity is 1 minus the rune-level Levenshtein distance divided by
// the longer normalized title. Empty input scores 0.
func TitleSimilarity(a, b string) float64 {
	an, bn := normalizeText(a), normalizeText(b)
	if an == "" || bn == "" {
		return 0
	}
	if an == bn {
		return 1
	}
	return normalizedLevenshtein(an, bn)
}

// DescriptionSimilarity is the Jaccard index of the two descriptions' word
// sets. Single-rune words are ignored; an empty set on either side scores 0.
func DescriptionSimilarity(a, b string) float64 {
	as, bs := wordSet(a), wordSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for w := range as {
		if _, ok := bs[w]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(normalizeText(s)) {
		if utf8.RuneCountInString(w) > 1 {
			set[w] = struct{}{}
		}
	}
	return set
}

func normalizedLevenshtein(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	if maxLen == 0 {
		return 1
	}
	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[len(br)])/float64(maxLen)
}
