// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package metrics records Prometheus metrics for the parley engine.

# Overview

Collectors register once at package load through promauto under the "parley"
namespace, so recording sites never manage a Registry or plumb a collector
handle. The /metrics listener serves the default registry.

# Capabilities

  - Session metrics: started/ended counters by terminal status, running gauge.
  - Round metrics: per-topology round counter and duration histogram.
  - Dispatch metrics: per-model dispatch counter by outcome, duration
    histogram, token usage (prompt/completion), cumulative cost in USD.
  - HTTP metrics: request counter by method/path/status class, duration
    histogram.
*/
package metrics
