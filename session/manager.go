package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/scheduler"
	"github.com/BaSui01/parley/store"
	"github.com/BaSui01/parley/types"
)

// CancelMode selects how a running session is stopped.
type CancelMode string

const (
	// CancelModeGraceful finishes the in-flight round before stopping.
	CancelModeGraceful CancelMode = "graceful"
	// CancelModeHard aborts in-flight dispatches immediately.
	CancelModeHard CancelMode = "hard"
)

// ParseCancelMode maps the wire value to a CancelMode. The empty string
// defaults to graceful.
func ParseCancelMode(s string) (CancelMode, error) {
	switch CancelMode(s) {
	case "":
		return CancelModeGraceful, nil
	case CancelModeGraceful, CancelModeHard:
		return CancelMode(s), nil
	default:
		return "", types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unknown cancel mode: %q", s)).WithHTTPStatus(400)
	}
}

// Options configures a Manager. Invoker is required; everything else has a
// working default.
type Options struct {
	Invoker invoker.Invoker
	// Store receives session records and presets. Defaults to an in-memory
	// store.
	Store store.SessionStore
	// Hub fans scheduler events out to API subscribers. Defaults to a fresh
	// hub shared by every session this manager starts.
	Hub    *events.Hub
	Logger *zap.Logger
}

// Manager owns every scheduler started through the API. All methods are safe
// for concurrent use.
type Manager struct {
	inv    invoker.Invoker
	store  store.SessionStore
	hub    *events.Hub
	logger *zap.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.RWMutex
	running map[string]*scheduler.Scheduler
	closed  bool

	wg sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Invoker == nil {
		return nil, types.NewError(types.ErrConfigValidation, "model invoker is required").
			WithHTTPStatus(400)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "session_manager"))

	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(logger)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Manager{
		inv:        opts.Invoker,
		store:      st,
		hub:        hub,
		logger:     logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		running:    make(map[string]*scheduler.Scheduler),
	}, nil
}

// Start validates the config, creates a session, and launches it on its own
// goroutine. The returned record is the initial snapshot: status running,
// transcript empty.
func (m *Manager) Start(ctx context.Context, cfg types.SessionConfig) (*types.SessionRecord, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	sch, err := scheduler.New(scheduler.Options{
		Config:  cfg,
		Invoker: m.inv,
		Store:   m.store,
		Hub:     m.hub,
		Logger:  m.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := m.launch(ctx, sch); err != nil {
		return nil, err
	}
	return sch.Snapshot(), nil
}

// StartFromPreset starts a session from a stored preset.
func (m *Manager) StartFromPreset(ctx context.Context, name string) (*types.SessionRecord, error) {
	p, err := m.store.GetPreset(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.Start(ctx, p.Config)
}

// Resume rebuilds a stored session after its last fully recorded round and
// relaunches it. Only cancelled, errored, or stale-running records qualify;
// sessions that finished on their own terms stay finished.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	if _, live := m.lookup(sessionID); live {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("session %s is still running", sessionID)).WithHTTPStatus(409)
	}
	rec, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case types.StatusCompleted, types.StatusStopped:
		return nil, types.NewError(types.ErrSessionTerminal,
			fmt.Sprintf("session %s already finished (%s)", sessionID, rec.Status)).
			WithHTTPStatus(409)
	}
	sch, err := scheduler.NewFromRecord(rec, scheduler.Options{
		Invoker: m.inv,
		Store:   m.store,
		Hub:     m.hub,
		Logger:  m.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := m.launch(ctx, sch); err != nil {
		return nil, err
	}
	return sch.Snapshot(), nil
}

// launch registers the scheduler and runs it until terminal. The initial
// snapshot is persisted up front so the session is listable before its first
// checkpoint; a failed write degrades to a log line, matching checkpoint
// semantics.
func (m *Manager) launch(ctx context.Context, sch *scheduler.Scheduler) error {
	id := sch.SessionID()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.NewError(types.ErrInternalError, "session manager is shut down").
			WithHTTPStatus(503)
	}
	if _, exists := m.running[id]; exists {
		m.mu.Unlock()
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("session %s is already running", id)).WithHTTPStatus(409)
	}
	m.running[id] = sch
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, sch.Snapshot()); err != nil {
		m.logger.Warn("initial session write failed",
			zap.String("session_id", id),
			zap.Error(err))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		rec := sch.Run(m.baseCtx)

		m.mu.Lock()
		delete(m.running, id)
		m.mu.Unlock()

		m.logger.Info("session finished",
			zap.String("session_id", id),
			zap.String("status", string(rec.Status)),
			zap.String("reason", string(rec.Reason)),
			zap.Int("turns", len(rec.Transcript)))
	}()
	return nil
}

// Get returns the freshest view of a session: the live snapshot while it
// runs, the stored record afterwards.
func (m *Manager) Get(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	if sch, ok := m.lookup(sessionID); ok {
		return sch.Snapshot(), nil
	}
	return m.store.GetSession(ctx, sessionID)
}

// List returns summaries of every known session, newest first. Live sessions
// override their stored snapshot so message counts track the current round.
func (m *Manager) List(ctx context.Context) ([]types.SessionSummary, error) {
	stored, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	live := make(map[string]*types.SessionRecord)
	m.mu.RLock()
	for id, sch := range m.running {
		live[id] = sch.Snapshot()
	}
	m.mu.RUnlock()

	out := make([]types.SessionSummary, 0, len(stored)+len(live))
	for _, sum := range stored {
		if rec, ok := live[sum.SessionID]; ok {
			out = append(out, rec.Summary())
			delete(live, sum.SessionID)
			continue
		}
		out = append(out, sum)
	}
	for _, rec := range live {
		out = append(out, rec.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Cancel stops a running session. Unknown ids return NotFound; sessions that
// already reached a terminal status return SessionTerminal.
func (m *Manager) Cancel(ctx context.Context, sessionID string, mode CancelMode) error {
	sch, ok := m.lookup(sessionID)
	if !ok {
		if _, err := m.store.GetSession(ctx, sessionID); err != nil {
			return err
		}
		return types.NewError(types.ErrSessionTerminal,
			fmt.Sprintf("session %s is not running", sessionID)).WithHTTPStatus(409)
	}
	switch mode {
	case CancelModeGraceful:
		sch.CancelGraceful()
	case CancelModeHard:
		sch.CancelHard()
	default:
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unknown cancel mode: %q", mode)).WithHTTPStatus(400)
	}
	m.logger.Info("session cancel requested",
		zap.String("session_id", sessionID),
		zap.String("mode", string(mode)))
	return nil
}

// SavePreset validates and stores a named config, returning the canonical
// filename.
func (m *Manager) SavePreset(ctx context.Context, name string, cfg types.SessionConfig) (string, error) {
	if err := ValidateConfig(cfg); err != nil {
		return "", err
	}
	return m.store.SavePreset(ctx, &types.Preset{Name: name, Config: cfg})
}

// GetPreset resolves a preset by name or filename.
func (m *Manager) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	return m.store.GetPreset(ctx, name)
}

// ListPresets returns the stored preset filenames, sorted.
func (m *Manager) ListPresets(ctx context.Context) ([]string, error) {
	return m.store.ListPresets(ctx)
}

// DeletePreset removes a preset.
func (m *Manager) DeletePreset(ctx context.Context, name string) error {
	return m.store.DeletePreset(ctx, name)
}

// Subscribe attaches a listener to the shared event hub. An empty sessionID
// receives events from every session.
func (m *Manager) Subscribe(sessionID string, buffer int) *events.Subscription {
	return m.hub.Subscribe(sessionID, buffer)
}

// Running reports the number of live sessions.
func (m *Manager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.running)
}

// Close stops accepting sessions, gracefully cancels the running ones, and
// waits for them to drain. When ctx expires first the remaining sessions are
// hard-cancelled and ctx's error is returned.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	scheds := make([]*scheduler.Scheduler, 0, len(m.running))
	for _, sch := range m.running {
		scheds = append(scheds, sch)
	}
	m.mu.Unlock()

	defer m.baseCancel()

	for _, sch := range scheds {
		sch.CancelGraceful()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, sch := range scheds {
			sch.CancelHard()
		}
		return ctx.Err()
	}
}

func (m *Manager) lookup(sessionID string) (*scheduler.Scheduler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sch, ok := m.running[sessionID]
	return sch, ok
}
