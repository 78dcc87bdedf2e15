// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package parley provides a top-level convenience entry point for running
// multi-model conversations with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/parley"
//
//	rec, err := parley.Run(ctx, cfg, parley.WithGateway("https://api.openai.com/v1"))
//	mgr, err := parley.New(parley.WithInvoker(myInvoker))
//
// This is a thin wrapper around [quick.New] and [quick.Run]; both produce
// identical results. Use this package when you prefer the shorter import path.
package parley

import (
	"context"

	"github.com/BaSui01/parley/quick"
	"github.com/BaSui01/parley/session"
	"github.com/BaSui01/parley/types"
)

// Option configures the manager created by [New].
type Option = quick.Option

// New creates a [session.Manager] with minimal configuration. At minimum an
// invoker must come from [WithInvoker] or [WithGateway].
func New(opts ...Option) (*session.Manager, error) {
	return quick.New(opts...)
}

// Run drives one conversation from start to its terminal state and returns
// the final record.
func Run(ctx context.Context, cfg types.SessionConfig, opts ...Option) (*types.SessionRecord, error) {
	return quick.Run(ctx, cfg, opts...)
}

// Re-export option shortcuts so callers never need to import quick/.

// WithInvoker sets a pre-built model invoker.
var WithInvoker = quick.WithInvoker

// WithGateway points the built-in HTTP invoker at an OpenAI-compatible
// endpoint. API key from PARLEY_API_KEY env.
var WithGateway = quick.WithGateway

// WithAPIKey overrides the API key for [WithGateway].
var WithAPIKey = quick.WithAPIKey

// WithTimeout bounds each model dispatch made through [WithGateway].
var WithTimeout = quick.WithTimeout

// WithStore sets the backend for session records and presets.
var WithStore = quick.WithStore

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger
