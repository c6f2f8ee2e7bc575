// Package metrics exposes the Prometheus collectors recorded by the assistant.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_dispatch_total",
			Help: "Dispatched utterances by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	RewardDelta = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_reward_delta_total",
			Help: "Reward deltas applied, by intent and sign",
		},
		[]string{"intent", "sign"},
	)

	CascadeStage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_cascade_stage_total",
			Help: "Knowledge resolution stages reached",
		},
		[]string{"stage"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinity_collaborator_duration_seconds",
			Help:    "External collaborator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator", "status"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "trinity_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	PendingClarifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trinity_pending_clarifications",
			Help: "Clarifications awaiting a follow-up in the in-memory store",
		},
	)
)

// Cascade stage labels.
const (
	StageCacheHit      = "cache_hit"
	StageSearch        = "search"
	StageAccepted      = "accepted"
	StageRetry         = "retry"
	StageRetryAccepted = "retry_accepted"
	StageClarify       = "clarify"
	StageFeedback      = "feedback"
)

// ObserveReward records a non-zero reward delta.
func ObserveReward(intent string, delta int) {
	switch {
	case delta > 0:
		RewardDelta.WithLabelValues(intent, "positive").Add(float64(delta))
	case delta < 0:
		RewardDelta.WithLabelValues(intent, "negative").Add(float64(-delta))
	}
}

// ObserveCollaborator records the latency of one collaborator call started at start.
func ObserveCollaborator(name string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CollaboratorDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, start time.Time) {
	RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
