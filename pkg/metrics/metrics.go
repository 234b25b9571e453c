// Copyright 2025 The agenthub-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package metrics provides Prometheus metrics for the agent runtime.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AgentsCreatedTotal counts agents registered over the process lifetime.
	AgentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_agents_created_total",
		Help: "The total number of agents created in the registry.",
	})

	// AgentsTerminatedTotal counts agents removed from the registry.
	AgentsTerminatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_agents_terminated_total",
		Help: "The total number of agents terminated and removed from the registry.",
	})

	// AgentsActive tracks the number of currently registered agents.
	AgentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agenthub_agents_active",
		Help: "The number of agents currently registered.",
	})

	// ActivitiesEnqueuedTotal counts activities accepted by a mailbox.
	ActivitiesEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_activities_enqueued_total",
		Help: "The total number of activities enqueued to agent mailboxes.",
	})

	// ActivitiesDroppedTotal counts activities discarded by the mailbox
	// drop-oldest overflow policy.
	ActivitiesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agenthub_activities_dropped_total",
		Help: "The total number of activities dropped by mailbox overflow.",
	},
		[]string{"agent_id"},
	)

	// ActivitiesProcessedTotal counts successfully processed activities.
	ActivitiesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_activities_processed_total",
		Help: "The total number of activities processed successfully.",
	})

	// ProcessingFailuresTotal counts activities whose state transition failed.
	ProcessingFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_processing_failures_total",
		Help: "The total number of activities whose processing failed.",
	})

	// ProcessingDurationSeconds observes the wall time of one state transition.
	ProcessingDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agenthub_processing_duration_seconds",
		Help:    "The time spent processing a single activity.",
		Buckets: prometheus.DefBuckets,
	})

	// EventsPublishedTotal counts output events published to agent hubs.
	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenthub_events_published_total",
		Help: "The total number of output events published to agent hubs.",
	})

	// SupervisorRestartsTotal counts restarts of supervised agent workers.
	SupervisorRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agenthub_supervisor_restarts_total",
		Help: "The total number of times a supervised worker has been restarted.",
	},
		[]string{"actor_id"},
	)
)

// Serve starts an HTTP server to expose the Prometheus metrics.
func Serve(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logFatalf("Metrics server failed: %v", err)
	}
}

// logFatalf can be replaced by tests to prevent process exit.
var logFatalf = log.Fatalf
