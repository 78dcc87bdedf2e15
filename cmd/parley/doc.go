// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package main is the parley server executable.

Subcommands: serve starts the HTTP API and metrics listeners, migrate manages
the database schema, health probes a running instance, and version prints
build information injected through ldflags.

The serve path loads and validates the YAML config, builds the zap logger,
then assembles the service in dependency order: store, model gateway, session
manager, HTTP handlers. Requests pass through a middleware chain of Recovery,
RequestID, SecurityHeaders, RequestLogger, metrics, optional OpenTelemetry
tracing, CORS, per-IP rate limiting, and API key or JWT auth. Prometheus
metrics are served on their own port so scrapes bypass auth. A config watcher
applies log-level changes without a restart.
*/
package main
