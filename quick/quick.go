// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package quick is the one-call entry point for embedding parley.
//
// New builds a ready session manager with minimal boilerplate; Run goes one
// step further and drives a single conversation to its end:
//
//	import "github.com/BaSui01/parley/quick"
//
//	rec, err := quick.Run(ctx, cfg, quick.WithGateway("https://api.openai.com/v1"))
//	mgr, err := quick.New(quick.WithInvoker(myInvoker))
//
// The root parley package re-exports everything here under the shorter
// import path.
package quick

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/session"
	"github.com/BaSui01/parley/store"
	"github.com/BaSui01/parley/types"
)

// Option configures the manager created by New.
type Option func(*options)

type options struct {
	inv    invoker.Invoker
	st     store.SessionStore
	logger *zap.Logger

	// Gateway shortcut fields, used when inv is nil.
	baseURL string
	apiKey  string
	timeout time.Duration
}

// WithInvoker sets a pre-built model invoker.
func WithInvoker(inv invoker.Invoker) Option {
	return func(o *options) { o.inv = inv }
}

// WithGateway points the built-in HTTP invoker at an OpenAI-compatible
// chat completions endpoint. The API key is read from PARLEY_API_KEY unless
// WithAPIKey overrides it.
func WithGateway(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
		if o.apiKey == "" {
			o.apiKey = os.Getenv("PARLEY_API_KEY")
		}
	}
}

// WithAPIKey overrides the API key for WithGateway.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithTimeout bounds each model dispatch made through WithGateway.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithStore sets the backend for session records and presets. Defaults to an
// in-memory store that dies with the manager.
func WithStore(st store.SessionStore) Option {
	return func(o *options) { o.st = st }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a session manager with minimal configuration. At minimum an
// invoker must come from WithInvoker or WithGateway.
func New(opts ...Option) (*session.Manager, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	inv := o.inv
	if inv == nil {
		if o.baseURL == "" {
			return nil, fmt.Errorf("model invoker is required: use WithInvoker or WithGateway")
		}
		if o.logger == nil {
			o.logger = zap.NewNop()
		}
		inv = invoker.NewGateway(invoker.GatewayConfig{
			BaseURL: o.baseURL,
			APIKey:  o.apiKey,
			Timeout: o.timeout,
		}, o.logger)
	}

	return session.NewManager(session.Options{
		Invoker: inv,
		Store:   o.st,
		Logger:  o.logger,
	})
}

// Run drives one conversation from start to its terminal state and returns
// the final record. If ctx ends first, the session is hard-cancelled and the
// cancelled record is returned together with the context error.
func Run(ctx context.Context, cfg types.SessionConfig, opts ...Option) (*types.SessionRecord, error) {
	mgr, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer mgr.Close(context.Background())

	rec, err := mgr.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sub := mgr.Subscribe(rec.SessionID, events.DefaultBuffer)
	defer sub.Close()

	// The session may have finished before the subscription existed.
	if cur, err := mgr.Get(context.Background(), rec.SessionID); err == nil && cur.Status.Terminal() {
		return cur, nil
	}

	var (
		ctxErr   error
		done     = ctx.Done()
		deadline <-chan time.Time
	)
	for {
		select {
		case <-done:
			// Cancel once, then keep draining until the scheduler
			// reports the end so the returned record is terminal.
			ctxErr = ctx.Err()
			done = nil
			_ = mgr.Cancel(context.Background(), rec.SessionID, session.CancelModeHard)
			deadline = time.After(5 * time.Second)
		case <-deadline:
			final, _ := mgr.Get(context.Background(), rec.SessionID)
			return final, ctxErr
		case ev, ok := <-sub.C():
			if !ok || ev.Type == events.TypeSessionEnded {
				final, getErr := mgr.Get(context.Background(), rec.SessionID)
				if ctxErr != nil {
					return final, ctxErr
				}
				return final, getErr
			}
		}
	}
}
