package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "restaurant_matching", Name: "sessions_active", Help: "Sessions currently held in the registry"})
	PlayersConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "restaurant_matching", Name: "players_connected", Help: "Players with a live websocket connection"})

	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "votes_total", Help: "Swipe decisions recorded"},
		[]string{"decision"},
	)
	MatchesFoundTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "matches_found_total", Help: "Restaurants that crossed the consensus threshold"})
	SessionsCompleted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "sessions_completed_total", Help: "Sessions that reached the completed state"})
	BroadcastsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "broadcasts_total", Help: "Snapshot broadcasts fanned out"})
	BroadcastDropsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "broadcast_drops_total", Help: "Connections dropped for a full send buffer or write failure"})
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "provider_requests_total", Help: "Upstream provider calls by provider and outcome"},
		[]string{"provider", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "restaurant_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "restaurant_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
