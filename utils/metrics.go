package utils

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SubmissionsScored counts daily submissions that made it through
	// validation and persisted an activity record.
	SubmissionsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "scoring",
		Name:      "submissions_scored_total",
		Help:      "Daily activity submissions scored and persisted.",
	})
	SubmissionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "scoring",
		Name:      "submissions_rejected_total",
		Help:      "Daily activity submissions rejected by validation.",
	})
	OvertakeEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "standings",
		Name:      "overtake_events_total",
		Help:      "Rank-overtake events detected by reconciliation.",
	})

	MessagesBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "moderation",
		Name:      "messages_blocked_total",
		Help:      "Chat messages blocked, by gate.",
	}, []string{"gate"})
	MessagesFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "moderation",
		Name:      "messages_flagged_total",
		Help:      "Borderline chat messages allowed but flagged for review.",
	})
	AutoMutes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "moderation",
		Name:      "auto_mutes_total",
		Help:      "Participants auto-muted after repeated violations.",
	})
	ClassifierFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movetogether",
		Subsystem: "moderation",
		Name:      "classifier_failures_total",
		Help:      "Toxicity backend failures handled by failing open.",
	})
)

func init() {
	prometheus.MustRegister(
		SubmissionsScored, SubmissionsRejected, OvertakeEvents,
		MessagesBlocked, MessagesFlagged, AutoMutes, ClassifierFailures,
	)
}
