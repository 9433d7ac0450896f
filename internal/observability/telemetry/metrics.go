package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quiz metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kogoto_active_sessions",
		Help: "Number of quiz sessions held in memory",
	})

	SessionsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kogoto_sessions_finished_total",
		Help: "Quiz sessions that reached their result, by mode and how they ended",
	}, []string{"mode", "reason"})

	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kogoto_answers_total",
		Help: "Finalized answers by source and correctness",
	}, []string{"source", "correct"})

	MatchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kogoto_match_outcomes_total",
		Help: "Answer matcher outcomes by status and rule",
	}, []string{"status", "rule"})

	AttemptRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kogoto_attempt_retries_total",
		Help: "Voice retries started after a try without a usable answer",
	})

	TranscribeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kogoto_transcribe_latency_seconds",
		Help:    "Latency of the external speech recognizer",
		Buckets: prometheus.DefBuckets,
	})

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kogoto_store_latency_seconds",
		Help:    "Learner store operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	WebsocketClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kogoto_websocket_clients",
		Help: "Connected websocket clients by stream",
	}, []string{"stream"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kogoto_events_published_total",
		Help: "Domain events published on the in-process bus",
	}, []string{"kind"})
)
