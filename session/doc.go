// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package session manages the population of schedulers behind the public API.

The Manager owns the full session lifecycle: it validates run requests before
any model is dispatched, launches one scheduler goroutine per accepted
session, tracks running schedulers in a registry, and answers reads by
preferring a live snapshot over the persisted record. Cancelled or crashed
sessions can be resumed from their last stored checkpoint; finished sessions
cannot.

Presets are named, validated session configs stored through the same backend
as session records, so a config that saves as a preset is guaranteed to start.
*/
package session
