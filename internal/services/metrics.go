// Package services – Prometheus instrumentation for the moderation pipeline.
//
// Label cardinality is kept bounded: action names come from the fixed tool
// catalog, action outcomes are "ok"/"error", and pipeline outcomes come from
// a fixed vocabulary, so the label space is a small, known set.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// pipelineMessages counts pipeline runs by terminal outcome:
	// delivered, delivered_fallback, deliver_failed, no_response.
	pipelineMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_pipeline_messages_total",
			Help: "Total messages processed by the moderation pipeline.",
		},
		[]string{"outcome"},
	)

	// moderationActions counts executor verbs by outcome.
	moderationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_actions_total",
			Help: "Total moderation actions executed against the chat platform.",
		},
		[]string{"action", "outcome"},
	)

	// interpreterRounds observes how many tool-invocation rounds each
	// interpretation needed before producing a final response.
	interpreterRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modbot_interpreter_rounds",
			Help:    "Tool-invocation rounds per interpreted message.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(pipelineMessages, moderationActions, interpreterRounds)
}
