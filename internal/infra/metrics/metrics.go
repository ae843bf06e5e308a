// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memez",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by key class and result (hit, miss, error).",
	}, []string{"class", "result"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memez",
		Name:      "upstream_request_seconds",
		Help:      "Latency of calls to upstream services.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "outcome"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memez",
		Name:      "fallbacks_total",
		Help:      "Degraded reads served from a fallback source.",
	}, []string{"what", "source"})

	Claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memez",
		Name:      "claims_total",
		Help:      "Claim runs by final status.",
	}, []string{"status"})

	AirdropBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memez",
		Name:      "airdrop_batches_total",
		Help:      "Airdrop batches by outcome.",
	}, []string{"status"})

	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "memez",
		Name:      "feed_clients",
		Help:      "Connected websocket feed clients.",
	})
)

// ObserveUpstream records the duration of a call that started at start.
func ObserveUpstream(source string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamDuration.WithLabelValues(source, outcome).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
