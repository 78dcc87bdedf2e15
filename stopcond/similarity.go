package stopcond

import "github.com/BaSui01/parley/tokenizer"

// Similarity returns the Jaccard similarity of the distinct token sets of a
// and b, in [0, 1]. Two empty texts count as identical. Encoding failures
// yield 0 so a broken tokenizer can never terminate a session.
func Similarity(tok tokenizer.Tokenizer, a, b string) float64 {
	setA, okA := tokenSet(tok, a)
	setB, okB := tokenSet(tok, b)
	if !okA || !okB {
		return 0.0
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}
	inter := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(tok tokenizer.Tokenizer, text string) (map[int]struct{}, bool) {
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, false
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, true
}
