// Package metrics defines the Prometheus series the driver and applier
// layers emit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CureStatus counts every Cure verdict by the resulting status, so an
	// operator can see the Ill/Dead ratio trend without scraping logs.
	CureStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "cure_status_total",
		Help:      "Number of cure decisions by resulting status.",
	}, []string{"status"})

	// ProposalsEmitted counts actions the driver handed to the applier,
	// whether the validator or the cure engine produced them, by action
	// type.
	ProposalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "proposals_emitted_total",
		Help:      "Number of proposal actions sent to the applier, by action type.",
	}, []string{"action_type"})

	// ProposalsRejected is labelled for actions the validator pops off a
	// queue but refuses. No code path increments it: Validator.FromProposals
	// does not report a rejection separately from an empty queue.
	ProposalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "proposals_rejected_total",
		Help:      "Number of queued actions the validator rejected.",
	}, []string{"action_type"})

	// DDDRefusals counts partitions that landed in the no-primary,
	// no-live-secondary branch and could not be safely recovered.
	DDDRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "ddd_refusals_total",
		Help:      "Number of DDD recovery attempts that refused to guess a primary.",
	}, []string{"reason"})

	// TickDuration observes how long one full driver tick over all shards
	// takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "guardian",
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent evaluating every partition in one tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// StorageErrors counts applier storage failures by operation and
	// backing store.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "storage_errors_total",
		Help:      "Number of storage operation failures, by operation and store.",
	}, []string{"operation", "store"})
)
