package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/types"
	"github.com/BaSui01/parley/vote"
)

// runVote runs the consensus round: every surviving slot answers the
// configured question, replies map onto the option set, and the tally lands
// on the record. Ballot dispatches count as one extra round.
func (s *Scheduler) runVote(ctx context.Context) {
	if s.cfg.FinalRoundVote.Method == types.TallyWeighted {
		// Weighted tallying is reserved until slots carry weights; the voter
		// falls back to majority and says so in the result.
		s.logger.Warn("weighted tally requested, falling back to majority")
	}
	voter := vote.NewVoter(s.cfg.FinalRoundVote)
	round := s.round + 1
	prompt := voter.Prompt()

	plan := make([]dispatch, 0, len(s.active))
	for _, id := range s.active {
		plan = append(plan, dispatch{
			edge:   types.Edge{From: 0, To: id},
			slot:   s.slots[id],
			prompt: prompt,
		})
	}
	s.logger.Info("final vote started",
		zap.Int("round", round), zap.Int("voters", len(plan)))
	results := s.fanOut(ctx, plan)

	votes := make(map[int]string, len(plan))
	turns := make([]types.Turn, 0, len(plan))
	for i, r := range results {
		id := plan[i].edge.To
		if r.err != nil {
			if ctx.Err() != nil {
				continue
			}
			kind := types.InvocationKind(r.err)
			if kind == "" {
				kind = types.InvokeServer
			}
			t := types.NewFailedTurn(round, id, 0, kind, r.err.Error())
			t.Role = types.RoleVote
			turns = append(turns, t)
			s.logger.Warn("ballot dispatch failed",
				zap.Int("slot_id", id), zap.Error(r.err))
			continue
		}
		votes[id] = voter.MapReply(r.res.Content)
		t := types.NewTurn(round, id, 0, types.RoleVote, r.res.Content)
		t.TokensIn = r.res.TokensIn
		t.TokensOut = r.res.TokensOut
		t.Cost = r.res.CostUSD
		t.LatencyMS = r.res.LatencyMS
		turns = append(turns, t)
		s.totalCost += r.res.CostUSD
		s.totalTokens += r.res.TokensIn + r.res.TokensOut
	}
	s.appendTurns(turns)
	if ctx.Err() != nil {
		// An aborted vote records no result.
		return
	}

	s.rec.VoteResult = voter.Result(votes)
	s.round = round
	s.publish(events.Event{
		Type:   events.TypeVoteResult,
		Round:  round,
		Detail: s.rec.VoteResult.Winner,
	})
	s.logger.Info("final vote tallied",
		zap.String("winner", s.rec.VoteResult.Winner),
		zap.Any("tally", s.rec.VoteResult.Tally))
}

// runTournamentRound runs one bracket round: paired slots exchange responses
// both directions, every active slot judges each pair, and losers leave the
// active set. A bye slot advances untouched.
func (s *Scheduler) runTournamentRound(ctx context.Context, round int) roundOutcome {
	if len(s.active) < 2 {
		return roundOutcome{resolved: true, detail: fmt.Sprintf("slot %d won the bracket", s.active[0])}
	}
	pairs, bye := s.resolver.Pairs(s.active)
	if len(pairs) == 0 {
		return roundOutcome{exhausted: true, detail: fmt.Sprintf("no pairable slots at round %d", round)}
	}

	s.publish(events.Event{Type: events.TypeRoundStarted, Round: round})
	s.logger.Debug("tournament round started",
		zap.Int("round", round), zap.Int("pairs", len(pairs)), zap.Int("bye", bye))

	edges := make([]types.Edge, 0, len(pairs)*2)
	for _, p := range pairs {
		edges = append(edges, types.Edge{From: p[0], To: p[1]}, types.Edge{From: p[1], To: p[0]})
	}
	plan, results := s.dispatchEdges(ctx, round, edges)

	responses := make(map[int]string, len(plan))
	for i, r := range results {
		if r.err == nil {
			responses[plan[i].edge.To] = r.res.Content
		}
	}

	out := s.collectRound(ctx, round, plan, results)
	if out.cancelled || out.allFailed {
		return out
	}

	for _, p := range pairs {
		winner := s.runPairVote(ctx, round, p[0], p[1], responses)
		if ctx.Err() != nil {
			out.cancelled = true
			return out
		}
		loser := p[0]
		if winner == p[0] {
			loser = p[1]
		}
		s.active = removeSlot(s.active, loser)
		s.logger.Info("pair decided",
			zap.Int("round", round),
			zap.Int("winner", winner),
			zap.Int("eliminated", loser))
	}
	if bye != 0 {
		s.logger.Debug("bye advances", zap.Int("round", round), zap.Int("slot_id", bye))
	}

	if len(s.active) == 1 {
		out.resolved = true
		out.detail = fmt.Sprintf("slot %d won the bracket", s.active[0])
	}
	return out
}

// runPairVote asks every active slot to judge one pair's responses and
// returns the advancing slot id. Ballots are recorded with the pair's lower
// slot id as SenderID so replays can re-tally them.
func (s *Scheduler) runPairVote(ctx context.Context, round, a, b int, responses map[int]string) int {
	respA, okA := responses[a]
	if !okA {
		respA = "(no response this round)"
	}
	respB, okB := responses[b]
	if !okB {
		respB = "(no response this round)"
	}
	pv := vote.NewPairVoter(a, b, respA, respB)
	prompt := pv.Prompt()

	plan := make([]dispatch, 0, len(s.active))
	for _, id := range s.active {
		plan = append(plan, dispatch{
			edge:   types.Edge{From: a, To: id},
			slot:   s.slots[id],
			prompt: prompt,
		})
	}
	results := s.fanOut(ctx, plan)

	votes := make(map[int]string, len(plan))
	turns := make([]types.Turn, 0, len(plan))
	for i, r := range results {
		id := plan[i].edge.To
		if r.err != nil {
			if ctx.Err() != nil {
				continue
			}
			kind := types.InvocationKind(r.err)
			if kind == "" {
				kind = types.InvokeServer
			}
			t := types.NewFailedTurn(round, id, a, kind, r.err.Error())
			t.Role = types.RoleVote
			turns = append(turns, t)
			continue
		}
		votes[id] = pv.MapReply(r.res.Content)
		t := types.NewTurn(round, id, a, types.RoleVote, r.res.Content)
		t.TokensIn = r.res.TokensIn
		t.TokensOut = r.res.TokensOut
		t.Cost = r.res.CostUSD
		t.LatencyMS = r.res.LatencyMS
		turns = append(turns, t)
		s.totalCost += r.res.CostUSD
		s.totalTokens += r.res.TokensIn + r.res.TokensOut
	}
	s.appendTurns(turns)

	return vote.PairWinner(pv.Result(votes), a, b)
}
