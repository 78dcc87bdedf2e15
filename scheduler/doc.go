// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package scheduler drives one conversation session from the first dispatch to
its terminal status.

A Scheduler is an actor: exactly one goroutine, entered through Run, owns the
session record, the transcript, and every piece of mutable round state.
External readers never observe live state; Snapshot returns an immutable deep
copy published through an atomic pointer at each round boundary.

Within a round, edge dispatches fan out concurrently, bounded by MaxParallel,
each call scoped with its own timeout. A failed dispatch is recorded as an
error-marked turn and never aborts the round; the session only degrades to an
error status when every dispatch in a round fails. Rounds are strictly
serialized.

Cancellation is cooperative. CancelGraceful sets a flag honored between
rounds; CancelHard aborts in-flight dispatches through context cancellation,
leaving the current round partially populated.
*/
package scheduler
