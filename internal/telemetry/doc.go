// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package telemetry wraps OpenTelemetry SDK setup for traces and metrics.

Init wires OTLP gRPC exporters, registers global providers, and installs the
W3C propagators. When telemetry is disabled no exporter is created and the
global providers stay noop, so instrumented code pays nothing.
*/
package telemetry
