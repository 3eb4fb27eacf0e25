package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topuprouter_webhook_events_total",
			Help: "Total number of marketplace webhook events received",
		},
		[]string{"event_type"},
	)

	RoutingOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topuprouter_routing_outcomes_total",
			Help: "Total number of routing decisions by final state",
		},
		[]string{"state", "provider"},
	)

	RoutingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topuprouter_routing_duration_seconds",
			Help:    "Duration of routing decisions",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProviderOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topuprouter_provider_orders_total",
			Help: "Total number of provider order calls by result",
		},
		[]string{"provider", "result"},
	)

	DeliveriesReportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topuprouter_deliveries_reported_total",
			Help: "Total number of deliveries reported to the marketplace",
		},
		[]string{"provider"},
	)

	TrackersLive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "topuprouter_trackers_live",
			Help: "Number of live order completion trackers",
		},
		[]string{"provider"},
	)

	TrackersOrphanedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topuprouter_trackers_orphaned_total",
			Help: "Total number of trackers that gave up leaving the order orphaned",
		},
		[]string{"provider"},
	)
)

// Register регистрирует все метрики сервиса
func Register() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(RoutingOutcomesTotal)
	prometheus.MustRegister(RoutingDuration)
	prometheus.MustRegister(ProviderOrdersTotal)
	prometheus.MustRegister(DeliveriesReportedTotal)
	prometheus.MustRegister(TrackersLive)
	prometheus.MustRegister(TrackersOrphanedTotal)
}
