package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/store"
	"github.com/BaSui01/parley/testutil"
	"github.com/BaSui01/parley/types"
)

func newTestManager(t *testing.T, inv *testutil.ScriptedInvoker, st store.SessionStore) *Manager {
	t.Helper()
	m, err := NewManager(Options{Invoker: inv, Store: st})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func waitTerminal(t *testing.T, m *Manager, sessionID string) *types.SessionRecord {
	t.Helper()
	ctx := context.Background()
	testutil.AssertEventuallyTrue(t, func() bool {
		rec, err := m.Get(ctx, sessionID)
		return err == nil && rec.Status.Terminal()
	}, 10*time.Second, "session never reached a terminal status")
	testutil.AssertEventuallyTrue(t, func() bool {
		return m.Running() == 0
	}, 10*time.Second, "scheduler never left the registry")
	rec, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	return rec
}

func TestNewManager_RequiresInvoker(t *testing.T) {
	_, err := NewManager(Options{})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigValidation, types.GetErrorCode(err))
}

func TestStart_RunsSessionToCompletion(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 50 * time.Millisecond
	st := store.NewMemoryStore()
	m := newTestManager(t, inv, st)

	rec, err := m.Start(ctx, testutil.RingRelayConfig(2, 2))
	require.NoError(t, err)
	require.NotEmpty(t, rec.SessionID)

	// 202 semantics: the returned record is the pre-dispatch snapshot.
	assert.Equal(t, types.StatusRunning, rec.Status)
	assert.Empty(t, rec.Transcript)
	assert.Equal(t, 1, m.Running())

	// The session is persisted, and listable, before its first checkpoint.
	stored, err := st.GetSession(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, stored.Status)

	final := waitTerminal(t, m, rec.SessionID)
	assert.Equal(t, types.StatusCompleted, final.Status)
	assert.Equal(t, types.ReasonRoundsLimit, final.Reason)
	assert.Len(t, final.Transcript, 2)

	// After the registry entry is gone, Get serves the stored record.
	stored, err = st.GetSession(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, stored.Status)
}

func TestStart_RejectsInvalidConfigBeforeDispatch(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	m := newTestManager(t, inv, store.NewMemoryStore())

	cfg := testutil.RingRelayConfig(2, 1)
	cfg.InitialPrompt = ""

	_, err := m.Start(ctx, cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigValidation, types.GetErrorCode(err))
	assert.Zero(t, inv.CallCount())
	assert.Zero(t, m.Running())

	sums, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestGet_UnknownSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	m := newTestManager(t, testutil.NewScriptedInvoker(), store.NewMemoryStore())

	_, err := m.Get(ctx, "no-such-session")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestList_MergesLiveAndStored(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 5 * time.Millisecond
	st := store.NewMemoryStore()
	m := newTestManager(t, inv, st)

	old := &types.SessionRecord{
		SessionID: "finished-earlier",
		Config:    testutil.RingRelayConfig(2, 1),
		Status:    types.StatusCompleted,
		Reason:    types.ReasonRoundsLimit,
		StartedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, st.SaveSession(ctx, old))

	live, err := m.Start(ctx, testutil.MeshConfig(2, 500, types.ParadigmRelay))
	require.NoError(t, err)

	sums, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, live.SessionID, sums[0].SessionID)
	assert.Equal(t, types.StatusRunning, sums[0].Status)
	assert.Equal(t, "finished-earlier", sums[1].SessionID)
	assert.Equal(t, types.StatusCompleted, sums[1].Status)

	require.NoError(t, m.Cancel(ctx, live.SessionID, CancelModeHard))
	waitTerminal(t, m, live.SessionID)
}

func TestCancel_GracefulStopsRunningSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 5 * time.Millisecond
	m := newTestManager(t, inv, store.NewMemoryStore())

	rec, err := m.Start(ctx, testutil.MeshConfig(2, 500, types.ParadigmRelay))
	require.NoError(t, err)
	testutil.AssertEventuallyTrue(t, func() bool {
		return inv.CallCount() > 0
	}, 5*time.Second, "no dispatch ever arrived")

	// An unknown mode is rejected without touching the session.
	err = m.Cancel(ctx, rec.SessionID, CancelMode("purge"))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	require.NoError(t, m.Cancel(ctx, rec.SessionID, CancelModeGraceful))
	final := waitTerminal(t, m, rec.SessionID)
	assert.Equal(t, types.StatusCancelled, final.Status)
	assert.Equal(t, types.ReasonCancelled, final.Reason)

	// Cancelling again hits the stored terminal record.
	err = m.Cancel(ctx, rec.SessionID, CancelModeGraceful)
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionTerminal, types.GetErrorCode(err))
}

func TestCancel_HardAbortsInFlightRound(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 300 * time.Millisecond
	m := newTestManager(t, inv, store.NewMemoryStore())

	rec, err := m.Start(ctx, testutil.MeshConfig(2, 500, types.ParadigmRelay))
	require.NoError(t, err)
	testutil.AssertEventuallyTrue(t, func() bool {
		return inv.CallCount() > 0
	}, 5*time.Second, "no dispatch ever arrived")

	require.NoError(t, m.Cancel(ctx, rec.SessionID, CancelModeHard))
	final := waitTerminal(t, m, rec.SessionID)
	assert.Equal(t, types.StatusCancelled, final.Status)
}

func TestCancel_UnknownSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	m := newTestManager(t, testutil.NewScriptedInvoker(), store.NewMemoryStore())

	err := m.Cancel(ctx, "no-such-session", CancelModeGraceful)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseCancelMode(t *testing.T) {
	mode, err := ParseCancelMode("")
	require.NoError(t, err)
	assert.Equal(t, CancelModeGraceful, mode)

	mode, err = ParseCancelMode("hard")
	require.NoError(t, err)
	assert.Equal(t, CancelModeHard, mode)

	_, err = ParseCancelMode("purge")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestResume_ContinuesCancelledSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	st := store.NewMemoryStore()
	m := newTestManager(t, inv, st)

	rec := &types.SessionRecord{
		SessionID: "halted-mid-run",
		Config:    testutil.RingRelayConfig(2, 4),
		Status:    types.StatusCancelled,
		Reason:    types.ReasonCancelled,
		StartedAt: time.Now().Add(-time.Minute),
		Transcript: []types.Turn{
			{Round: 1, SlotID: 1, SenderID: 0, Role: types.RoleAssistant, Content: "opening position"},
			{Round: 2, SlotID: 2, SenderID: 1, Role: types.RoleAssistant, Content: "counterpoint"},
		},
	}
	require.NoError(t, st.SaveSession(ctx, rec))

	resumed, err := m.Resume(ctx, "halted-mid-run")
	require.NoError(t, err)
	assert.Equal(t, "halted-mid-run", resumed.SessionID)

	final := waitTerminal(t, m, "halted-mid-run")
	assert.Equal(t, types.StatusCompleted, final.Status)
	require.Len(t, final.Transcript, 4)
	assert.Equal(t, 2, inv.CallCount())

	// The ring hop picks up where the stored transcript left off.
	assert.Equal(t, 3, final.Transcript[2].Round)
	assert.Equal(t, 1, final.Transcript[2].SlotID)
	assert.Equal(t, 2, final.Transcript[2].SenderID)
}

func TestResume_RefusesFinishedSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	st := store.NewMemoryStore()
	m := newTestManager(t, inv, st)

	rec := &types.SessionRecord{
		SessionID: "already-done",
		Config:    testutil.RingRelayConfig(2, 1),
		Status:    types.StatusCompleted,
		Reason:    types.ReasonRoundsLimit,
		StartedAt: time.Now(),
	}
	require.NoError(t, st.SaveSession(ctx, rec))

	_, err := m.Resume(ctx, "already-done")
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionTerminal, types.GetErrorCode(err))
	assert.Zero(t, inv.CallCount())
	assert.Zero(t, m.Running())
}

func TestResume_RefusesLiveSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 5 * time.Millisecond
	m := newTestManager(t, inv, store.NewMemoryStore())

	rec, err := m.Start(ctx, testutil.MeshConfig(2, 500, types.ParadigmRelay))
	require.NoError(t, err)

	_, err = m.Resume(ctx, rec.SessionID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "still running")

	require.NoError(t, m.Cancel(ctx, rec.SessionID, CancelModeHard))
	waitTerminal(t, m, rec.SessionID)
}

func TestResume_UnknownSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	m := newTestManager(t, testutil.NewScriptedInvoker(), store.NewMemoryStore())

	_, err := m.Resume(ctx, "no-such-session")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPresets_RoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	m := newTestManager(t, inv, store.NewMemoryStore())

	cfg := testutil.RingRelayConfig(2, 1)
	filename, err := m.SavePreset(ctx, "Morning Review", cfg)
	require.NoError(t, err)
	assert.Equal(t, "morning-review.yaml", filename)

	names, err := m.ListPresets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"morning-review.yaml"}, names)

	p, err := m.GetPreset(ctx, "Morning Review")
	require.NoError(t, err)
	assert.Equal(t, "Morning Review", p.Name)
	assert.Equal(t, cfg.InitialPrompt, p.Config.InitialPrompt)

	rec, err := m.StartFromPreset(ctx, "morning-review.yaml")
	require.NoError(t, err)
	final := waitTerminal(t, m, rec.SessionID)
	assert.Equal(t, types.StatusCompleted, final.Status)
	assert.Len(t, final.Transcript, 1)

	require.NoError(t, m.DeletePreset(ctx, "morning-review.yaml"))
	names, err = m.ListPresets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSavePreset_RejectsInvalidConfig(t *testing.T) {
	ctx := testutil.TestContext(t)
	m := newTestManager(t, testutil.NewScriptedInvoker(), store.NewMemoryStore())

	cfg := testutil.RingRelayConfig(2, 1)
	cfg.Slots[1].ModelRef = ""

	_, err := m.SavePreset(ctx, "broken", cfg)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigValidation, types.GetErrorCode(err))

	names, err := m.ListPresets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSubscribe_ReceivesSessionEvents(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	m := newTestManager(t, inv, store.NewMemoryStore())

	sub := m.Subscribe("", 32)
	defer sub.Close()

	rec, err := m.Start(ctx, testutil.RingRelayConfig(2, 1))
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, events.TypeSessionStarted, ev.Type)
		assert.Equal(t, rec.SessionID, ev.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event arrived")
	}
	waitTerminal(t, m, rec.SessionID)
}

func TestClose_DrainsRunningSessions(t *testing.T) {
	ctx := testutil.TestContext(t)
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 2 * time.Millisecond
	st := store.NewMemoryStore()

	m, err := NewManager(Options{Invoker: inv, Store: st})
	require.NoError(t, err)

	rec, err := m.Start(ctx, testutil.MeshConfig(2, 3, types.ParadigmRelay))
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Close(closeCtx))
	assert.Zero(t, m.Running())

	stored, err := st.GetSession(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.Status.Terminal())

	_, err = m.Start(ctx, testutil.RingRelayConfig(2, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shut down")
}
