package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the webhook ingestion and broadcast paths. Labels carry the
// outcome so dashboards can separate signature rejects, resolution failures,
// and clean processing without extra series.
var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "famibot_webhook_events_total",
		Help: "Webhook events received, by processing result.",
	}, []string{"result"})

	AIReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "famibot_ai_replies_total",
		Help: "AI co-participation outcomes, by result.",
	}, []string{"result"})

	TopicBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "famibot_topic_broadcasts_total",
		Help: "Per-family topic broadcast outcomes, by result.",
	}, []string{"result"})
)
