package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/internal/metrics"
	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/paradigm"
	"github.com/BaSui01/parley/types"
)

// dispatch is one planned invoker call: the edge it serves, the receiving
// slot, the sender text delivered, and the assembled prompt.
type dispatch struct {
	edge     types.Edge
	slot     types.Slot
	incoming string
	prompt   string
}

type dispatchResult struct {
	res *invoker.Result
	err error
}

// roundOutcome reports what a round did to the session.
type roundOutcome struct {
	// exhausted means planning produced no dispatchable edge; the round never
	// started.
	exhausted bool
	// resolved means the tournament bracket is down to one slot.
	resolved bool
	// allFailed means every dispatch in the round failed.
	allFailed bool
	// cancelled means a hard cancel arrived while the round was in flight.
	cancelled bool
	detail    string
	okTurns   int
	failTurns int
}

func (s *Scheduler) runRound(ctx context.Context, round int) roundOutcome {
	ctx, span := s.tracer.Start(ctx, "scheduler.round",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.Int("session.round", round)))
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.RoundObserved(string(s.resolver.Kind()), time.Since(start))
	}()

	if s.resolver.Kind() == types.TopologyTournament {
		return s.runTournamentRound(ctx, round)
	}

	edges, exhausted := s.planEdges(round)
	if exhausted {
		return roundOutcome{exhausted: true, detail: fmt.Sprintf("no dispatchable edge at round %d", round)}
	}

	s.publish(events.Event{Type: events.TypeRoundStarted, Round: round})
	s.logger.Debug("round started", zap.Int("round", round), zap.Int("dispatches", len(edges)))

	plan, results := s.dispatchEdges(ctx, round, edges)
	return s.collectRound(ctx, round, plan, results)
}

// planEdges decides what this round dispatches. Sequential topologies advance
// one hop from the previous speaker; everything else dispatches the
// resolver's full edge set.
func (s *Scheduler) planEdges(round int) ([]types.Edge, bool) {
	if s.resolver.Kind().Sequential() {
		if round == 1 || s.lastSpeaker == 0 {
			return []types.Edge{{From: 0, To: s.resolver.EntrySlot(s.active)}}, false
		}
		e, ok := s.resolver.NextHop(round, s.lastSpeaker, s.active)
		if !ok {
			return nil, true
		}
		return []types.Edge{e}, false
	}
	edges := s.resolver.Resolve(round, s.active)
	if len(edges) == 0 {
		return nil, true
	}
	return edges, false
}

// dispatchEdges builds the dispatch plan for a set of edges, runs the report
// pre-pass when the paradigm asks for it, assembles prompts, and fans out.
func (s *Scheduler) dispatchEdges(ctx context.Context, round int, edges []types.Edge) ([]dispatch, []dispatchResult) {
	plan := s.buildPlan(edges)
	if s.engine.Paradigm() == types.ParadigmReport {
		s.condenseSenders(ctx, round, plan)
	}
	for i := range plan {
		text, err := s.engine.Build(plan[i].edge, plan[i].incoming, s.rec.Transcript, s.view)
		if err != nil {
			s.logger.Warn("context assembly failed, delivering raw incoming",
				zap.Int("round", round),
				zap.Int("slot_id", plan[i].edge.To),
				zap.Error(err))
			text = plan[i].incoming
		}
		plan[i].prompt = text
	}
	return plan, s.fanOut(ctx, plan)
}

// buildPlan orders edges by (receiver, sender) and resolves each sender's
// latest text. From == 0 delivers the initial prompt.
func (s *Scheduler) buildPlan(edges []types.Edge) []dispatch {
	sorted := append([]types.Edge(nil), edges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].To != sorted[j].To {
			return sorted[i].To < sorted[j].To
		}
		return sorted[i].From < sorted[j].From
	})
	plan := make([]dispatch, 0, len(sorted))
	for _, e := range sorted {
		incoming := s.cfg.InitialPrompt
		if e.From != 0 {
			if v, ok := s.latest[e.From]; ok {
				incoming = v
			}
		}
		plan = append(plan, dispatch{edge: e, slot: s.slots[e.To], incoming: incoming})
	}
	return plan
}

// fanOut runs every dispatch concurrently, bounded by maxParallel, and
// returns results indexed by plan position.
func (s *Scheduler) fanOut(ctx context.Context, plan []dispatch) []dispatchResult {
	results := make([]dispatchResult, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i := range plan {
		g.Go(func() error {
			res, err := s.invokeOne(gctx, plan[i].slot, plan[i].prompt)
			results[i] = dispatchResult{res: res, err: err}
			return nil // a failed dispatch is round data, not a group error
		})
	}
	_ = g.Wait()
	return results
}

// invokeOne scopes a single invoker call with the per-dispatch timeout.
func (s *Scheduler) invokeOne(ctx context.Context, slot types.Slot, prompt string) (*invoker.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	callCtx, span := s.tracer.Start(callCtx, "scheduler.dispatch",
		trace.WithAttributes(
			attribute.Int("slot.id", slot.SlotID),
			attribute.String("slot.model", slot.ModelRef)))
	defer span.End()

	start := time.Now()
	res, err := s.inv.Invoke(callCtx, slot, prompt)
	outcome := "ok"
	var tokensIn, tokensOut int
	var cost float64
	if err != nil {
		span.RecordError(err)
		outcome = string(types.InvocationKind(err))
		if outcome == "" {
			outcome = string(types.InvokeServer)
		}
	} else {
		tokensIn, tokensOut, cost = res.TokensIn, res.TokensOut, res.CostUSD
	}
	metrics.DispatchObserved(slot.ModelRef, outcome, time.Since(start), tokensIn, tokensOut, cost)
	return res, err
}

// collectRound applies the failure policy, appends the round's turns in
// canonical order, and advances latest outputs and the sequential hop.
func (s *Scheduler) collectRound(ctx context.Context, round int, plan []dispatch, results []dispatchResult) roundOutcome {
	aborted := ctx.Err() != nil

	turns := make([]types.Turn, 0, len(plan))
	updates := make(map[int]string, len(plan))
	ok, failed := 0, 0
	for i, r := range results {
		d := plan[i]
		if r.err != nil {
			if aborted {
				// An aborted round keeps only the work that completed.
				continue
			}
			kind := types.InvocationKind(r.err)
			if kind == "" {
				kind = types.InvokeServer
			}
			turns = append(turns, types.NewFailedTurn(round, d.edge.To, d.edge.From, kind, r.err.Error()))
			failed++
			if s.engine.Paradigm() != types.ParadigmDebate {
				// Continuity: the failed receiver forwards the sender's text.
				updates[d.edge.To] = d.incoming
			}
			s.logger.Warn("dispatch failed",
				zap.Int("round", round),
				zap.Int("slot_id", d.edge.To),
				zap.Int("sender_id", d.edge.From),
				zap.String("kind", string(kind)),
				zap.Error(r.err))
			continue
		}
		t := types.NewTurn(round, d.edge.To, d.edge.From, types.RoleAssistant, r.res.Content)
		t.TokensIn = r.res.TokensIn
		t.TokensOut = r.res.TokensOut
		t.Cost = r.res.CostUSD
		t.LatencyMS = r.res.LatencyMS
		turns = append(turns, t)
		ok++
		updates[d.edge.To] = r.res.Content
		s.totalCost += r.res.CostUSD
		s.totalTokens += r.res.TokensIn + r.res.TokensOut
	}

	s.appendTurns(turns)
	for id, text := range updates {
		s.latest[id] = text
	}
	if s.resolver.Kind().Sequential() && !aborted && len(plan) == 1 {
		// The hop advances past a failed receiver too; a stalled relay would
		// redispatch the same edge forever.
		s.lastSpeaker = plan[0].edge.To
	}

	out := roundOutcome{okTurns: ok, failTurns: failed, cancelled: aborted}
	if !aborted && ok == 0 && len(plan) > 0 {
		out.allFailed = true
		out.detail = fmt.Sprintf("all %d dispatches failed in round %d", len(plan), round)
	}
	return out
}

// appendTurns adds a round's turns to the transcript in canonical
// (round, slot, sender) order and publishes each one.
func (s *Scheduler) appendTurns(turns []types.Turn) {
	if len(turns) == 0 {
		return
	}
	types.SortCanonical(turns)
	s.rec.Transcript = append(s.rec.Transcript, turns...)
	for i := range turns {
		t := turns[i]
		s.publish(events.Event{Type: events.TypeTurn, Round: t.Round, Turn: &t})
	}
}

// condenseSenders runs the report paradigm's pre-pass: one condensation call
// per distinct sender, cached for every edge the sender feeds this round. A
// failed condensation falls back to the sender's raw text.
func (s *Scheduler) condenseSenders(ctx context.Context, round int, plan []dispatch) {
	seen := make(map[int]bool)
	senders := make([]int, 0, len(plan))
	for _, d := range plan {
		if d.edge.From != 0 && !seen[d.edge.From] {
			seen[d.edge.From] = true
			senders = append(senders, d.edge.From)
		}
	}
	if len(senders) == 0 {
		return
	}
	sort.Ints(senders)

	pre := make([]dispatch, 0, len(senders))
	for _, id := range senders {
		pre = append(pre, dispatch{
			edge:   types.Edge{From: id, To: id},
			slot:   s.slots[id],
			prompt: s.engine.CondenseRequest(s.latest[id]),
		})
	}
	results := s.fanOut(ctx, pre)

	condensed := make(map[int]string, len(senders))
	turns := make([]types.Turn, 0, len(senders))
	for i, r := range results {
		id := pre[i].edge.From
		if r.err != nil {
			if ctx.Err() != nil {
				continue
			}
			kind := types.InvocationKind(r.err)
			if kind == "" {
				kind = types.InvokeServer
			}
			t := types.NewFailedTurn(round, id, id, kind, r.err.Error())
			t.Role = types.RoleReport
			turns = append(turns, t)
			s.logger.Warn("condensation failed, delivering raw text",
				zap.Int("round", round), zap.Int("slot_id", id), zap.Error(r.err))
			continue
		}
		condensed[id] = r.res.Content
		t := types.NewTurn(round, id, id, types.RoleReport, r.res.Content)
		t.TokensIn = r.res.TokensIn
		t.TokensOut = r.res.TokensOut
		t.Cost = r.res.CostUSD
		t.LatencyMS = r.res.LatencyMS
		turns = append(turns, t)
		s.totalCost += r.res.CostUSD
		s.totalTokens += r.res.TokensIn + r.res.TokensOut
	}
	s.appendTurns(turns)

	for i := range plan {
		if c, ok := condensed[plan[i].edge.From]; ok {
			plan[i].incoming = c
		}
	}
}

// summarize compresses the transcript into a running summary that replaces
// raw history for subsequent memory context assembly. The lowest-id active
// slot does the compressing.
func (s *Scheduler) summarize(ctx context.Context, round int) {
	target := s.active[0]
	prompt := s.engine.SummarizeRequest(s.rec.Transcript, s.view)
	res, err := s.invokeOne(ctx, s.slots[target], prompt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := types.InvocationKind(err)
		if kind == "" {
			kind = types.InvokeServer
		}
		t := types.NewFailedTurn(round, target, 0, kind, err.Error())
		t.Role = types.RoleSummary
		s.appendTurns([]types.Turn{t})
		s.logger.Warn("summarization failed, keeping previous view",
			zap.Int("round", round), zap.Error(err))
		return
	}

	t := types.NewTurn(round, target, 0, types.RoleSummary, res.Content)
	t.TokensIn = res.TokensIn
	t.TokensOut = res.TokensOut
	t.Cost = res.CostUSD
	t.LatencyMS = res.LatencyMS
	s.appendTurns([]types.Turn{t})
	s.totalCost += res.CostUSD
	s.totalTokens += res.TokensIn + res.TokensOut

	s.view = paradigm.MemoryView{Summary: res.Content, SummaryRound: round}
	s.publish(events.Event{
		Type:   events.TypeSummary,
		Round:  round,
		Detail: "running summary replaced raw history",
	})
	s.logger.Debug("transcript summarized",
		zap.Int("round", round), zap.Int("slot_id", target))
}
