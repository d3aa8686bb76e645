// internal/textutil/textutil.go

// Package textutil provides the pure text normalization and feature
// extraction helpers shared by the query interpreter and the relevance
// scorer. Nothing here touches I/O.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tokenRe      = regexp.MustCompile(`[\p{L}\p{N}]+`)
	digitsRe     = regexp.MustCompile(`\d+`)
	priceCleanRe = regexp.MustCompile(`[^0-9.,\-]`)
)

// Stopwords filtered out during keyword extraction. Kept small on purpose:
// shopping queries are short and most words carry signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "with": {}, "is": {}, "it": {}, "i": {},
	"me": {}, "my": {}, "want": {}, "need": {}, "find": {}, "get": {},
	"buy": {}, "please": {}, "some": {}, "any": {}, "best": {},
}

// Normalize lowercases the input and collapses all whitespace runs into
// single spaces.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// Tokenize splits normalized text into lowercase alphanumeric tokens.
func Tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// ExtractKeywords returns the tokens of s with stopwords removed, preserving
// order and dropping duplicates.
func ExtractKeywords(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(s) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// ExtractNumbers returns every digit sequence found in s, in order.
func ExtractNumbers(s string) []string {
	return digitsRe.FindAllString(s, -1)
}

// ParsePrice parses a free-form price string ("1,234.56", "$49.99") into a
// float. Returns nil for empty or unparseable input rather than an error;
// callers treat nil as "no price".
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	cleaned := priceCleanRe.ReplaceAllString(s, "")
	// Thousands separators: drop commas when a decimal point is present or
	// the comma groups look like "1,234"; otherwise treat comma as decimal.
	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else if parts := strings.Split(cleaned, ","); len(parts[len(parts)-1]) == 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// WordOverlap returns the fraction of a's tokens that also appear in b.
// Returns 0 when a has no tokens.
func WordOverlap(a, b string) float64 {
	aTokens := Tokenize(a)
	if len(aTokens) == 0 {
		return 0
	}
	bSet := make(map[string]struct{})
	for _, t := range Tokenize(b) {
		bSet[t] = struct{}{}
	}
	matched := 0
	for _, t := range aTokens {
		if _, ok := bSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(aTokens))
}

// Similarity scores two strings in [0,1] using a character-bigram Dice
// coefficient over normalized text. Identical strings score 1.0, disjoint
// strings 0.0.
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}
	aBigrams := bigrams(a)
	bBigrams := bigrams(b)
	if len(aBigrams) == 0 || len(bBigrams) == 0 {
		return 0
	}
	overlap := 0
	for bg, n := range aBigrams {
		if m, ok := bBigrams[bg]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	total := 0
	for _, n := range aBigrams {
		total += n
	}
	for _, n := range bBigrams {
		total += n
	}
	return 2.0 * float64(overlap) / float64(total)
}

// ContainsDigitSequence reports whether every digit run in term (e.g. a
// model number like "100ml" -> "100") appears somewhere in text.
func ContainsDigitSequence(term, text string) bool {
	nums := ExtractNumbers(term)
	if len(nums) == 0 {
		return false
	}
	for _, n := range nums {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

func bigrams(s string) map[string]int {
	out := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		if unicode.IsSpace(runes[i]) || unicode.IsSpace(runes[i+1]) {
			continue
		}
		out[string(runes[i:i+2])]++
	}
	return out
}
