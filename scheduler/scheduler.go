package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/checkpoint"
	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/internal/ctxkeys"
	"github.com/BaSui01/parley/internal/metrics"
	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/paradigm"
	"github.com/BaSui01/parley/stopcond"
	"github.com/BaSui01/parley/store"
	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/topology"
	"github.com/BaSui01/parley/types"
	"github.com/BaSui01/parley/vote"
)

const (
	// DefaultMaxParallel bounds concurrent dispatches within a round when the
	// config leaves MaxParallel at zero.
	DefaultMaxParallel = 4
	// DefaultDispatchTimeout scopes each invoker call when the config leaves
	// DispatchTimeout at zero. Matches the gateway transport default.
	DefaultDispatchTimeout = 120 * time.Second

	// persistTimeout bounds the terminal store write. It runs on a fresh
	// context so a hard cancel cannot strand the final record.
	persistTimeout = 10 * time.Second

	instrumentationName = "github.com/BaSui01/parley/scheduler"
)

// state tracks the actor's position in the session lifecycle.
type state int

const (
	stateInitializing state = iota
	stateRunningRound
	stateEvaluating
	stateVoting
	stateFinalizing
	stateTerminated
)

func (s state) String() string {
	switch s {
	case stateInitializing:
		return "initializing"
	case stateRunningRound:
		return "running_round"
	case stateEvaluating:
		return "evaluating"
	case stateVoting:
		return "voting"
	case stateFinalizing:
		return "finalizing"
	case stateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Options wires a scheduler to its collaborators. Config and Invoker are
// required; the rest default to in-memory or no-op implementations.
type Options struct {
	// SessionID is assigned when empty.
	SessionID string
	Config    types.SessionConfig
	Invoker   invoker.Invoker
	// Store receives checkpoint and terminal writes. Defaults to a fresh
	// in-memory store.
	Store store.SessionStore
	// Hub receives lifecycle events. Defaults to a private hub nobody
	// subscribes to.
	Hub    *events.Hub
	Logger *zap.Logger
}

// Scheduler runs one session. Construct with New or NewFromRecord, start with
// Run. All exported methods are safe for concurrent use; everything else
// belongs to the Run goroutine.
type Scheduler struct {
	id     string
	cfg    types.SessionConfig
	slots  map[int]types.Slot
	logger *zap.Logger
	tracer trace.Tracer

	inv      invoker.Invoker
	resolver *topology.Resolver
	engine   *paradigm.Engine
	stopper  *stopcond.Evaluator
	ckpt     *checkpoint.Manager
	hub      *events.Hub

	maxParallel     int
	dispatchTimeout time.Duration

	// Actor-owned state. Only the Run goroutine touches these fields.
	state       state
	rec         *types.SessionRecord
	active      []int
	latest      map[int]string
	view        paradigm.MemoryView
	lastSpeaker int
	round       int
	totalCost   float64
	totalTokens int

	// Cross-goroutine controls.
	snapshot atomic.Pointer[types.SessionRecord]
	graceful atomic.Bool
	hardStop chan struct{}
	hardOnce sync.Once
	runOnce  sync.Once
	done     chan struct{}
}

func configErr(format string, args ...any) *types.Error {
	return types.NewError(types.ErrConfigValidation, fmt.Sprintf(format, args...))
}

// New validates the config far enough to guarantee the run loop cannot wedge,
// builds the routing and context machinery, and seeds round state. Full
// request-level validation (dense slot ids, model refs) belongs to the
// session manager.
func New(opts Options) (*Scheduler, error) {
	if opts.Invoker == nil {
		return nil, configErr("model invoker is required")
	}
	cfg := opts.Config.Clone()
	if len(cfg.Slots) == 0 {
		return nil, configErr("at least one slot is required")
	}
	if cfg.InitialPrompt == "" {
		return nil, configErr("initial_prompt is required")
	}
	if cfg.Infinite && cfg.StopConditions.Empty() {
		return nil, configErr("infinite mode requires ≥1 stop condition")
	}
	if !cfg.Infinite && cfg.RoundsLimit <= 0 {
		return nil, configErr("rounds_limit must be positive unless infinite is set")
	}

	slots := make(map[int]types.Slot, len(cfg.Slots))
	slotIDs := make([]int, 0, len(cfg.Slots))
	for _, sl := range cfg.Slots {
		if _, dup := slots[sl.SlotID]; dup {
			return nil, configErr("duplicate slot id %d", sl.SlotID)
		}
		slots[sl.SlotID] = sl
		slotIDs = append(slotIDs, sl.SlotID)
	}
	sort.Ints(slotIDs)

	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	resolver, err := topology.NewResolver(cfg.Topology, slotIDs, id)
	if err != nil {
		return nil, err
	}
	engine, err := paradigm.NewEngine(cfg.Paradigm, cfg.Slots)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"), zap.String("session_id", id))

	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(logger)
	}

	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	dispatchTimeout := cfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = DefaultDispatchTimeout
	}

	latest := make(map[int]string, len(slotIDs))
	for _, sid := range slotIDs {
		latest[sid] = cfg.InitialPrompt
	}

	s := &Scheduler{
		id:              id,
		cfg:             cfg,
		slots:           slots,
		logger:          logger,
		tracer:          otel.Tracer(instrumentationName),
		inv:             opts.Invoker,
		resolver:        resolver,
		engine:          engine,
		stopper:         stopcond.NewEvaluator(cfg.StopConditions, tokenizer.ForModel(cfg.Slots[0].ModelRef)),
		ckpt:            checkpoint.NewManager(st, cfg.CheckpointEvery, logger),
		hub:             hub,
		maxParallel:     maxParallel,
		dispatchTimeout: dispatchTimeout,
		state:           stateInitializing,
		rec: &types.SessionRecord{
			SessionID: id,
			Config:    cfg,
			Status:    types.StatusRunning,
			StartedAt: time.Now(),
		},
		active:   slotIDs,
		latest:   latest,
		hardStop: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.publishSnapshot()
	return s, nil
}

// NewFromRecord rebuilds a scheduler from a persisted record and resumes
// after the last fully recorded round. The record's config snapshot is
// authoritative; Options.SessionID and Options.Config are ignored.
func NewFromRecord(rec *types.SessionRecord, opts Options) (*Scheduler, error) {
	if rec == nil || rec.SessionID == "" {
		return nil, configErr("a session record with an id is required to resume")
	}
	opts.SessionID = rec.SessionID
	opts.Config = rec.Config
	s, err := New(opts)
	if err != nil {
		return nil, err
	}

	src := rec.Clone()
	s.rec.Transcript = src.Transcript
	s.rec.Checkpoints = src.Checkpoints
	s.rec.VoteResult = src.VoteResult
	s.rec.StartedAt = src.StartedAt
	s.rec.Status = types.StatusRunning
	s.rec.Reason = ""
	s.rec.EndedAt = nil

	s.replay()
	s.publishSnapshot()
	s.logger.Info("session rebuilt from record",
		zap.Int("resumed_after_round", s.round),
		zap.Int("transcript_turns", len(s.rec.Transcript)),
		zap.Ints("active_slots", s.active))
	return s, nil
}

// SessionID returns the session's identifier.
func (s *Scheduler) SessionID() string { return s.id }

// Snapshot returns the latest published immutable record. Never nil after
// construction.
func (s *Scheduler) Snapshot() *types.SessionRecord { return s.snapshot.Load() }

// Done closes when the session reaches a terminal status.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// CancelGraceful requests termination at the next round boundary. In-flight
// dispatches finish normally.
func (s *Scheduler) CancelGraceful() {
	if s.graceful.CompareAndSwap(false, true) {
		s.logger.Info("graceful cancel requested")
	}
}

// CancelHard aborts in-flight dispatches immediately. The current round stays
// partially populated.
func (s *Scheduler) CancelHard() {
	s.hardOnce.Do(func() {
		s.logger.Info("hard cancel requested")
		close(s.hardStop)
	})
}

// Run executes the session to its terminal status and returns the final
// record. It blocks; callers wanting asynchrony launch it on a goroutine and
// watch Done. Calling Run again returns the same final record.
func (s *Scheduler) Run(ctx context.Context) *types.SessionRecord {
	s.runOnce.Do(func() { s.run(ctx) })
	return s.Snapshot()
}

func (s *Scheduler) run(ctx context.Context) {
	// Every dispatch context carries the session id so the gateway can tag
	// outbound requests.
	runCtx, cancel := context.WithCancel(ctxkeys.WithSessionID(ctx, s.id))
	defer cancel()
	go func() {
		select {
		case <-s.hardStop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	s.logger.Info("session starting",
		zap.String("topology", string(s.resolver.Kind())),
		zap.String("paradigm", string(s.engine.Paradigm())),
		zap.Int("slots", len(s.slots)),
		zap.Int("rounds_limit", s.cfg.RoundsLimit),
		zap.Bool("infinite", s.cfg.Infinite))
	metrics.SessionStarted()
	s.publish(events.Event{Type: events.TypeSessionStarted, Status: types.StatusRunning})

	for {
		if runCtx.Err() != nil || s.graceful.Load() {
			s.terminate(types.StatusCancelled, types.ReasonCancelled,
				fmt.Sprintf("cancelled after round %d", s.round))
			return
		}

		round := s.round + 1
		s.setState(stateRunningRound)
		out := s.runRound(runCtx, round)
		if out.exhausted {
			// The round never started; the counter stays put.
			s.finish(runCtx, types.StatusCompleted, types.ReasonTopologyExhausted, out.detail)
			return
		}
		s.round = round

		if out.cancelled {
			s.terminate(types.StatusCancelled, types.ReasonCancelled,
				fmt.Sprintf("hard cancel aborted round %d", round))
			return
		}
		s.publish(events.Event{
			Type:   events.TypeRoundCompleted,
			Round:  round,
			Detail: fmt.Sprintf("ok=%d failed=%d", out.okTurns, out.failTurns),
		})
		if out.allFailed {
			s.terminate(types.StatusError, types.ReasonAllSlotsFailed, out.detail)
			return
		}

		s.setState(stateEvaluating)
		if s.ckpt.Due(round) {
			s.ckpt.Write(runCtx, s.rec, round, s.totalCost, s.totalTokens)
			s.publish(events.Event{Type: events.TypeCheckpoint, Round: round})
		}
		if out.resolved {
			s.finish(runCtx, types.StatusCompleted, types.ReasonTournamentResolved, out.detail)
			return
		}
		if v, stop := s.stopper.Evaluate(stopcond.State{
			StartedAt:  s.rec.StartedAt,
			Now:        time.Now(),
			TotalCost:  s.totalCost,
			Round:      round,
			Transcript: s.rec.Transcript,
		}); stop {
			s.logger.Info("stop condition fired",
				zap.String("reason", string(v.Reason)), zap.String("detail", v.Detail))
			s.finish(runCtx, types.StatusStopped, v.Reason, v.Detail)
			return
		}
		if !s.cfg.Infinite && round >= s.cfg.RoundsLimit {
			s.finish(runCtx, types.StatusCompleted, types.ReasonRoundsLimit,
				fmt.Sprintf("completed all %d rounds", s.cfg.RoundsLimit))
			return
		}
		if s.cfg.SummarizeEvery > 0 && round%s.cfg.SummarizeEvery == 0 {
			s.summarize(runCtx, round)
		}
		s.publishSnapshot()
	}
}

// finish runs the optional consensus round, then records the terminal status.
// Only planned and stopped terminations vote; error and cancel paths call
// terminate directly.
func (s *Scheduler) finish(ctx context.Context, status types.SessionStatus, reason types.TerminationReason, detail string) {
	if s.cfg.FinalRoundVote.Enabled {
		s.setState(stateVoting)
		s.runVote(ctx)
		if ctx.Err() != nil {
			s.terminate(types.StatusCancelled, types.ReasonCancelled, "cancelled during final vote")
			return
		}
	}
	s.setState(stateFinalizing)
	s.terminate(status, reason, detail)
}

func (s *Scheduler) terminate(status types.SessionStatus, reason types.TerminationReason, detail string) {
	now := time.Now()
	s.rec.Status = status
	s.rec.Reason = reason
	s.rec.EndedAt = &now
	s.setState(stateTerminated)

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.ckpt.Persist(persistCtx, s.rec); err != nil {
		s.logger.Error("terminal session persist failed", zap.Error(err))
	}

	s.publishSnapshot()
	s.publish(events.Event{
		Type:   events.TypeSessionEnded,
		Round:  s.round,
		Status: status,
		Reason: reason,
		Detail: detail,
	})
	metrics.SessionEnded(string(status))
	s.logger.Info("session ended",
		zap.String("status", string(status)),
		zap.String("reason", string(reason)),
		zap.String("detail", detail),
		zap.Int("rounds", s.round),
		zap.Int("turns", len(s.rec.Transcript)),
		zap.Float64("total_cost_usd", s.totalCost),
		zap.Int("total_tokens", s.totalTokens))
	close(s.done)
}

func (s *Scheduler) setState(next state) {
	if s.state == next {
		return
	}
	s.logger.Debug("state transition",
		zap.Stringer("from", s.state), zap.Stringer("to", next))
	s.state = next
}

func (s *Scheduler) publish(ev events.Event) {
	ev.SessionID = s.id
	s.hub.Publish(ev)
}

func (s *Scheduler) publishSnapshot() {
	s.snapshot.Store(s.rec.Clone())
}

// replay rebuilds round state from the record's transcript: latest outputs,
// the sequential hop position, the running summary view, cumulative totals,
// and tournament eliminations. The transcript is walked round by round so the
// failure substitution rule sees the same pre-round state it saw live.
func (s *Scheduler) replay() {
	transcript := s.rec.Transcript
	for start := 0; start < len(transcript); {
		round := transcript[start].Round
		end := start
		for end < len(transcript) && transcript[end].Round == round {
			end++
		}
		s.replayRound(round, transcript[start:end])
		s.round = round
		start = end
	}
}

func (s *Scheduler) replayRound(round int, seg []types.Turn) {
	updates := make(map[int]string)
	for _, t := range seg {
		s.totalCost += t.Cost
		s.totalTokens += t.TokensIn + t.TokensOut
		switch t.Role {
		case types.RoleAssistant:
			if !t.Failed() {
				updates[t.SlotID] = t.Content
			} else if s.engine.Paradigm() != types.ParadigmDebate {
				if t.SenderID == 0 {
					updates[t.SlotID] = s.cfg.InitialPrompt
				} else if prior, ok := s.latest[t.SenderID]; ok {
					updates[t.SlotID] = prior
				}
			}
			s.lastSpeaker = t.SlotID
		case types.RoleSummary:
			if !t.Failed() {
				s.view = paradigm.MemoryView{Summary: t.Content, SummaryRound: t.Round}
			}
		}
	}
	for id, text := range updates {
		s.latest[id] = text
	}
	if s.resolver.Kind() == types.TopologyTournament {
		s.replayEliminations(seg)
	}
}

// replayEliminations re-tallies the recorded pair ballots of one tournament
// round. Ballots carry the pair's lower slot id as SenderID; final-vote
// ballots carry zero and are skipped.
func (s *Scheduler) replayEliminations(seg []types.Turn) {
	if len(s.active) < 2 {
		return
	}
	pairs, _ := s.resolver.Pairs(s.active)
	if len(pairs) == 0 {
		return
	}
	ballots := make(map[int]map[int]string)
	for _, t := range seg {
		if t.Role != types.RoleVote || t.Failed() || t.SenderID == 0 {
			continue
		}
		m := ballots[t.SenderID]
		if m == nil {
			m = make(map[int]string)
			ballots[t.SenderID] = m
		}
		m[t.SlotID] = t.Content
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		pv := vote.NewPairVoter(a, b, "", "")
		votes := make(map[int]string, len(ballots[a]))
		for voter, raw := range ballots[a] {
			votes[voter] = pv.MapReply(raw)
		}
		winner := vote.PairWinner(pv.Result(votes), a, b)
		loser := a
		if winner == a {
			loser = b
		}
		s.active = removeSlot(s.active, loser)
	}
}

func removeSlot(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
