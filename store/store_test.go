package store

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/types"
)

func testRecord(id string, started time.Time) *types.SessionRecord {
	return &types.SessionRecord{
		SessionID: id,
		Config: types.SessionConfig{
			Slots: []types.Slot{
				{SlotID: 1, ModelRef: "model-a", Template: "basic"},
				{SlotID: 2, ModelRef: "model-b", Template: "basic"},
			},
			Topology:      types.TopologyConfig{Type: types.TopologyRing},
			Paradigm:      types.ParadigmRelay,
			RoundsLimit:   3,
			InitialPrompt: "Define X",
		},
		Transcript: []types.Turn{
			types.NewTurn(1, 1, 0, types.RoleAssistant, "first"),
			types.NewTurn(2, 2, 1, types.RoleAssistant, "second"),
		},
		Checkpoints: []types.CheckpointRecord{
			{Round: 2, TranscriptLength: 2, CumulativeCost: 0.02, CumulativeTokens: 40, CreatedAt: started},
		},
		Status:    types.StatusRunning,
		StartedAt: started,
	}
}

// runSessionStoreSuite exercises the SessionStore contract against one
// backend.
func runSessionStoreSuite(t *testing.T, open func(t *testing.T) SessionStore) {
	ctx := context.Background()

	t.Run("session round trip", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		rec := testRecord("sess-1", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
		if err := s.SaveSession(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.GetSession(ctx, "sess-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.SessionID != "sess-1" || len(got.Transcript) != 2 || len(got.Checkpoints) != 1 {
			t.Fatalf("round trip lost data: %+v", got)
		}
		if got.Config.Paradigm != types.ParadigmRelay || len(got.Config.Slots) != 2 {
			t.Fatalf("config snapshot lost: %+v", got.Config)
		}
		if got.Transcript[0].Content != "first" {
			t.Fatalf("transcript order lost: %+v", got.Transcript)
		}
	})

	t.Run("save replaces previous snapshot", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		rec := testRecord("sess-2", time.Now())
		if err := s.SaveSession(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
		rec.Status = types.StatusStopped
		rec.Reason = types.ReasonMaxTurns
		rec.Transcript = append(rec.Transcript, types.NewTurn(3, 1, 2, types.RoleAssistant, "third"))
		if err := s.SaveSession(ctx, rec); err != nil {
			t.Fatalf("save again: %v", err)
		}

		got, err := s.GetSession(ctx, "sess-2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != types.StatusStopped || len(got.Transcript) != 3 {
			t.Fatalf("second save not visible: status=%s turns=%d", got.Status, len(got.Transcript))
		}
	})

	t.Run("missing session", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if _, err := s.GetSession(ctx, "nope"); err != ErrNotFound {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if err := s.DeleteSession(ctx, "nope"); err != ErrNotFound {
			t.Fatalf("delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "mid", "new"} {
			rec := testRecord(id, base.Add(time.Duration(i)*time.Hour))
			if err := s.SaveSession(ctx, rec); err != nil {
				t.Fatalf("save %s: %v", id, err)
			}
		}

		got, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("listed %d sessions, want 3", len(got))
		}
		if got[0].SessionID != "new" || got[2].SessionID != "old" {
			t.Fatalf("wrong order: %s, %s, %s", got[0].SessionID, got[1].SessionID, got[2].SessionID)
		}
		if got[0].MessageCount != 2 {
			t.Fatalf("message count = %d, want 2", got[0].MessageCount)
		}
	})

	t.Run("delete session", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.SaveSession(ctx, testRecord("gone", time.Now())); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.DeleteSession(ctx, "gone"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetSession(ctx, "gone"); err != ErrNotFound {
			t.Fatalf("err after delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("preset round trip", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		p := &types.Preset{Name: "Duel of Wits", Config: testRecord("x", time.Now()).Config}
		filename, err := s.SavePreset(ctx, p)
		if err != nil {
			t.Fatalf("save preset: %v", err)
		}
		if filename != "duel-of-wits.yaml" {
			t.Fatalf("filename = %q", filename)
		}

		// Resolvable by display name and by filename.
		for _, key := range []string{"Duel of Wits", filename} {
			got, err := s.GetPreset(ctx, key)
			if err != nil {
				t.Fatalf("get preset by %q: %v", key, err)
			}
			if got.Name != "Duel of Wits" || len(got.Config.Slots) != 2 {
				t.Fatalf("preset lost data: %+v", got)
			}
		}

		files, err := s.ListPresets(ctx)
		if err != nil {
			t.Fatalf("list presets: %v", err)
		}
		if len(files) != 1 || files[0] != filename {
			t.Fatalf("files = %v", files)
		}

		if err := s.DeletePreset(ctx, "duel-of-wits"); err != nil {
			t.Fatalf("delete preset: %v", err)
		}
		if _, err := s.GetPreset(ctx, filename); err != ErrNotFound {
			t.Fatalf("err after delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runSessionStoreSuite(t, func(t *testing.T) SessionStore {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runSessionStoreSuite(t, func(t *testing.T) SessionStore {
		s, err := NewFileStore(Config{BaseDir: t.TempDir()}, zap.NewNop())
		if err != nil {
			t.Fatalf("open file store: %v", err)
		}
		return s
	})
}

func TestMemoryStore_CallerCannotMutateStoredRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	rec := testRecord("iso", time.Now())
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.Transcript[0].Content = "tampered"

	got, err := s.GetSession(ctx, "iso")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript[0].Content != "first" {
		t.Fatal("stored record shares memory with the caller")
	}
	got.Transcript[0].Content = "tampered again"

	got2, _ := s.GetSession(ctx, "iso")
	if got2.Transcript[0].Content != "first" {
		t.Fatal("returned record shares memory with the store")
	}
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(Config{BaseDir: t.TempDir()}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	rec := testRecord("../escape", time.Now())
	if err := s.SaveSession(context.Background(), rec); err != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.GetSession(context.Background(), `..\win`); err != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPresetFilename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"simple", "debate", "debate.yaml", false},
		{"spaces and case", "My Great Preset", "my-great-preset.yaml", false},
		{"already a filename", "my-great-preset.yaml", "my-great-preset.yaml", false},
		{"strips punctuation", "a/b\\c:d", "abcd.yaml", false},
		{"empty", "   ", "", true},
		{"only punctuation", "///", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PresetFilename(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("want error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFactory(t *testing.T) {
	t.Run("defaults to memory", func(t *testing.T) {
		s, err := New(Config{}, zap.NewNop())
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		defer s.Close()
		if _, ok := s.(*MemoryStore); !ok {
			t.Fatalf("got %T, want *MemoryStore", s)
		}
	})

	t.Run("file", func(t *testing.T) {
		s, err := New(Config{Type: TypeFile, BaseDir: t.TempDir()}, zap.NewNop())
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		defer s.Close()
		if _, ok := s.(*FileStore); !ok {
			t.Fatalf("got %T, want *FileStore", s)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := New(Config{Type: "carrier-pigeon"}, zap.NewNop()); err == nil {
			t.Fatal("want error for unknown backend")
		}
	})
}
