// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package handlers implements the Parley HTTP endpoints.

SessionHandler covers the session lifecycle: start (inline config or
preset), list, fetch, cancel, resume, and the WebSocket event stream.
PresetHandler stores and serves named configurations. HealthHandler
answers liveness and readiness probes with pluggable checks.

Every response uses the same JSON envelope: {success, data, error,
timestamp, request_id}. Errors carry the engine's error codes and map
to HTTP statuses through one table, so a CONFIG_VALIDATION failure is
always a 400 and a SESSION_TERMINAL conflict always a 409, whichever
endpoint raised it. Request bodies are capped at 1 MB and decoded in
strict mode: unknown fields are rejected rather than ignored.
*/
package handlers
