// Package tokenizer provides token counting and encoding for slot outputs.
// The scheduler uses it for cost-free token accounting and the stop-condition
// evaluator uses encoded token ids for overlap similarity.
package tokenizer

import (
	"fmt"
	"sync"
)

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)

	// Encode converts text into a list of token ids. Ids must be stable:
	// the same text always encodes to the same ids.
	Encode(text string) ([]int, error)

	// Name returns the tokenizer's name.
	Name() string
}

// Global tokenizer registry keyed by model name.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register registers a tokenizer for the given model name.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// Get returns the tokenizer registered for the given model. It also tries
// prefix matching, so "gpt-4o-mini" resolves through a "gpt-4o" entry.
func Get(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	for prefix, t := range modelTokenizers {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModel returns the registered tokenizer for the model, falling back to a
// tiktoken encoding when the model looks like an OpenAI family name, and to
// the word estimator otherwise. Never returns nil.
func ForModel(model string) Tokenizer {
	if t, err := Get(model); err == nil {
		return t
	}
	if t, err := NewTiktoken(model); err == nil {
		return t
	}
	return NewEstimator()
}
