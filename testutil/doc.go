// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package testutil provides shared helpers for parley tests.

It carries the scripted invoker used to drive sessions deterministically
without a live model backend, plus context helpers and session config
builders. Tests should prefer these over hand-rolled doubles so failure
injection and call accounting stay consistent across packages.
*/
package testutil
