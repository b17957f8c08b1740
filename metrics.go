package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Launcher-level counters, served on the controller's /metrics
// endpoint. Per-node chain metrics come from the nodes themselves on
// their own metrics ports.
var (
	metricNodesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testnetd_nodes_started_total",
		Help: "Number of node processes successfully spawned.",
	})

	metricSpawnFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testnetd_spawn_failures_total",
		Help: "Number of node processes that failed to spawn.",
	})

	metricGracefulStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testnetd_graceful_stops_total",
		Help: "Number of node processes that exited within the grace period.",
	})

	metricForceKills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testnetd_force_kills_total",
		Help: "Number of node processes that had to be force killed.",
	})

	metricProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testnetd_probe_failures_total",
		Help: "Number of failed RPC status probes.",
	})
)
