package slackbot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_slack_events_received_total",
			Help: "Total number of Slack events received",
		},
		[]string{"event_type", "inner_event_type"},
	)

	EventsDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salesbot_slack_events_duplicate_total",
			Help: "Total number of duplicate events skipped",
		},
	)

	MessagesIgnoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_slack_messages_ignored_total",
			Help: "Total number of messages ignored",
		},
		[]string{"reason"},
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesbot_slack_message_processing_duration_seconds",
			Help:    "Duration of message processing",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~102s
		},
	)

	MessagesPostedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_slack_messages_posted_total",
			Help: "Total number of messages posted to Slack",
		},
		[]string{"status"},
	)

	SlackAPIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_slack_api_errors_total",
			Help: "Total number of Slack API errors",
		},
		[]string{"operation"},
	)

	InFlightMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "salesbot_slack_in_flight_messages",
			Help: "Number of questions currently being answered",
		},
	)
)
