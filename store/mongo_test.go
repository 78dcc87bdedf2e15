package store

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"
)

// TestMongoStore needs a reachable server; set PARLEY_TEST_MONGO_URI to run it.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("PARLEY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PARLEY_TEST_MONGO_URI not set")
	}

	runSessionStoreSuite(t, func(t *testing.T) SessionStore {
		cfg := DefaultConfig()
		cfg.Mongo.URI = uri
		cfg.Mongo.Database = "parley_test"
		s, err := NewMongoStore(cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		purgeStore(t, s)
		return s
	})
}

// purgeStore empties a shared backend so every subtest starts clean.
func purgeStore(t *testing.T, s SessionStore) {
	ctx := context.Background()
	summaries, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("purge list sessions: %v", err)
	}
	for _, sum := range summaries {
		if err := s.DeleteSession(ctx, sum.SessionID); err != nil {
			t.Fatalf("purge session %s: %v", sum.SessionID, err)
		}
	}
	files, err := s.ListPresets(ctx)
	if err != nil {
		t.Fatalf("purge list presets: %v", err)
	}
	for _, f := range files {
		if err := s.DeletePreset(ctx, f); err != nil {
			t.Fatalf("purge preset %s: %v", f, err)
		}
	}
}
