package tokenizer

import (
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Estimator is a dependency-free fallback tokenizer. Counting distinguishes
// CJK and ASCII characters; encoding hashes normalized words to stable ids so
// overlap similarity still behaves sensibly without a real vocabulary.
type Estimator struct{}

// NewEstimator creates the fallback tokenizer.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	// CJK characters ~1.5 chars/token, ASCII ~4 chars/token.
	estimated := int(float64(cjkCount)/1.5 + float64(totalChars-cjkCount)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) Encode(text string) ([]int, error) {
	words := splitWords(text)
	ids := make([]int, 0, len(words))
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		// Mask to keep ids positive.
		ids = append(ids, int(h.Sum32()&0x7fffffff))
	}
	return ids, nil
}

func (e *Estimator) Name() string {
	return "estimator"
}

// splitWords lowercases and splits on any non-letter, non-digit rune.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
