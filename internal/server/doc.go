// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package server manages the lifecycle of the HTTP API listener.

Manager wraps net/http.Server with a non-blocking Start, a graceful
Shutdown bounded by a configurable timeout, and WaitForShutdown for
blocking on SIGINT/SIGTERM or an asynchronous serve failure. When
Config.MaxConns is positive the listener is capped with
netutil.LimitListener so a flood of connections cannot exhaust file
descriptors.

Start returns as soon as the listener is bound, which lets callers
configure ":0" in tests and read the real port back from Addr.
*/
package server
