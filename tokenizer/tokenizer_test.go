package tokenizer

import "testing"

func TestEstimator_CountTokens(t *testing.T) {
	t.Parallel()

	e := NewEstimator()

	t.Run("Empty", func(t *testing.T) {
		n, err := e.CountTokens("")
		if err != nil {
			t.Fatalf("CountTokens failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 tokens for empty text, got %d", n)
		}
	})

	t.Run("ASCII", func(t *testing.T) {
		n, err := e.CountTokens("the quick brown fox jumps over the lazy dog")
		if err != nil {
			t.Fatalf("CountTokens failed: %v", err)
		}
		if n < 5 || n > 20 {
			t.Errorf("estimate out of plausible range: %d", n)
		}
	})

	t.Run("NeverZeroForNonEmpty", func(t *testing.T) {
		n, _ := e.CountTokens("a")
		if n == 0 {
			t.Error("non-empty text must estimate at least 1 token")
		}
	})
}

func TestEstimator_EncodeStable(t *testing.T) {
	t.Parallel()

	e := NewEstimator()
	a, err := e.Encode("Hello, World! hello")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, _ := e.Encode("Hello, World! hello")

	if len(a) != 3 {
		t.Fatalf("expected 3 word tokens, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encoding not stable at %d: %d vs %d", i, a[i], b[i])
		}
	}
	// "hello" and "Hello" normalize to the same id.
	if a[0] != a[2] {
		t.Errorf("case-folded duplicates should share an id: %d vs %d", a[0], a[2])
	}
}

func TestRegistry_PrefixMatch(t *testing.T) {
	est := NewEstimator()
	Register("test-model", est)

	got, err := Get("test-model-large")
	if err != nil {
		t.Fatalf("prefix lookup failed: %v", err)
	}
	if got != est {
		t.Fatal("expected registered estimator via prefix match")
	}

	if _, err := Get("unknown-model"); err == nil {
		t.Fatal("expected error for unregistered model")
	}
}

func TestForModel_NeverNil(t *testing.T) {
	for _, model := range []string{"gpt-4o-mini", "claude-sonnet", "", "local/llama"} {
		if tok := ForModel(model); tok == nil {
			t.Fatalf("ForModel(%q) returned nil", model)
		}
	}
}
