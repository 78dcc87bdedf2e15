// Package paradigm assembles the exact input context delivered to a slot for
// a routing edge. The paradigm decides how much prior conversation the
// receiver sees; the topology decides who talks to whom. The two are fully
// orthogonal.
package paradigm

import (
	"fmt"
	"strings"

	"github.com/BaSui01/parley/template"
	"github.com/BaSui01/parley/types"
)

// MemoryView is the compressed view of a memory-paradigm transcript: the
// running summary plus the round it was taken at. Raw turns recorded after
// SummaryRound form the uncompressed tail.
type MemoryView struct {
	Summary      string
	SummaryRound int
}

// Engine builds dispatch contexts for one session. Immutable after
// construction; safe for concurrent use.
type Engine struct {
	paradigm types.Paradigm
	slots    map[int]types.Slot
}

// NewEngine validates the paradigm and every slot's template name. Unknown
// template names fail here, at session start, never at dispatch time.
func NewEngine(paradigm types.Paradigm, slots []types.Slot) (*Engine, error) {
	if !paradigm.Valid() {
		return nil, types.NewError(types.ErrConfigValidation,
			fmt.Sprintf("unknown paradigm: %s", paradigm)).WithHTTPStatus(400)
	}
	byID := make(map[int]types.Slot, len(slots))
	for _, s := range slots {
		if !template.Has(s.Template) {
			return nil, types.NewError(types.ErrConfigValidation,
				fmt.Sprintf("slot %d references unknown template %q", s.SlotID, s.Template)).
				WithHTTPStatus(400)
		}
		byID[s.SlotID] = s
	}
	return &Engine{paradigm: paradigm, slots: byID}, nil
}

// Paradigm returns the engine's paradigm.
func (e *Engine) Paradigm() types.Paradigm {
	return e.paradigm
}

// Build returns the context text delivered to the receiver of edge. incoming
// is the sender's canonical latest output (the initial prompt when edge.From
// is 0, or the sender's condensed report under the report paradigm). The
// transcript and view are consulted only by the memory paradigm.
func (e *Engine) Build(edge types.Edge, incoming string, transcript []types.Turn, view MemoryView) (string, error) {
	receiver, ok := e.slots[edge.To]
	if !ok {
		return "", types.NewError(types.ErrTopology,
			fmt.Sprintf("edge receiver %d references no slot", edge.To))
	}

	payload := incoming
	if sender, ok := e.slots[edge.From]; ok && sender.Append != "" {
		payload = payload + "\n" + sender.Append
	}
	if receiver.Prepend != "" {
		payload = receiver.Prepend + "\n" + payload
	}

	if e.paradigm == types.ParadigmMemory {
		if history := renderHistory(transcript, view); history != "" {
			payload = history + "\n\nLatest message:\n" + payload
		}
	}

	return template.Render(receiver.Template, payload, template.Params{
		SlotID:   receiver.SlotID,
		ModelRef: receiver.ModelRef,
		Debate:   e.paradigm == types.ParadigmDebate,
	})
}

// CondenseRequest builds the instruction asking a sender to condense its own
// latest output before it is forwarded (report paradigm). The request is a
// meta instruction and bypasses persona templates.
func (e *Engine) CondenseRequest(senderLatest string) string {
	return "Condense your previous message into a brief report that preserves its key claims, " +
		"decisions, and open questions. Reply with the report only.\n\n" + senderLatest
}

// SummarizeRequest builds the instruction for the periodic compression call
// that replaces raw memory-paradigm history with a running summary.
func (e *Engine) SummarizeRequest(transcript []types.Turn, view MemoryView) string {
	return "Compress the following conversation into a concise running summary. Preserve who " +
		"claimed what, unresolved disagreements, and any decisions reached. Reply with the " +
		"summary only.\n\n" + renderHistory(transcript, view)
}

// renderHistory renders the memory view: the running summary, then every
// successful reply recorded after the summary round.
func renderHistory(transcript []types.Turn, view MemoryView) string {
	var b strings.Builder
	b.WriteString("Conversation so far:")
	wrote := false

	if view.Summary != "" {
		fmt.Fprintf(&b, "\n[summary through round %d] %s", view.SummaryRound, view.Summary)
		wrote = true
	}
	for _, turn := range transcript {
		if turn.Round <= view.SummaryRound || turn.Failed() || turn.Role != types.RoleAssistant {
			continue
		}
		fmt.Fprintf(&b, "\n[round %d | slot %d] %s", turn.Round, turn.SlotID, turn.Content)
		wrote = true
	}
	if !wrote {
		return ""
	}
	return b.String()
}
