// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package types provides the shared data model of the parley engine.

# Overview

types is the lowest-level common package. It depends on no other parley
package and defines the contracts every upper module (topology, paradigm,
scheduler, store, api) shares: slots, topology descriptors, session
configuration, transcript turns, checkpoints, vote results, and the
structured error taxonomy.

# Core types

  - Slot: one participating model configuration (id, model ref, template, sampling)
  - TopologyConfig: validated topology descriptor (ring/chain/star/mesh/random/tournament/custom)
  - Edge: one directed routing assignment between slots
  - Paradigm: context-assembly rule (relay/memory/debate/report)
  - StopConditions: optional termination predicates, zero = disabled
  - SessionConfig: immutable session input, validated before any dispatch
  - SessionRecord: persisted artifact and published snapshot shape
  - Turn: append-only transcript entry, (Round, SlotID) canonical order
  - CheckpointRecord: durable progress marker, written never mutated
  - VoteResult: tallied consensus outcome with the undecided bucket
  - Error / ErrorCode: structured errors with HTTP status, Retryable, invocation Kind

# Capabilities

  - Error chain: NewError / NewInvocationError, WithCause / WithHTTPStatus,
    IsRetryable / GetErrorCode / InvocationKind
  - Context propagation: WithSessionID / WithRound for dispatch-scoped values
  - Deep copies: Clone on every shared aggregate so published snapshots never
    alias scheduler-owned state
  - Canonical ordering: SortCanonical over (Round, SlotID, SenderID)
*/
package types
