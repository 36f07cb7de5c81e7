package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Endpoint fetch outcomes.
const (
	StatusOK           = "ok"
	StatusTunnelFailed = "tunnel_failed"
	StatusQueryFailed  = "query_failed"
)

var (
	Registry = prometheus.NewRegistry()

	SourceDomains  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quad9_source_domains_total", Help: "domains returned per source"}, []string{"source"})
	EndpointFetch  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quad9_endpoint_fetch_total", Help: "operational endpoint fetches by outcome"}, []string{"status"})
	FetchDuration  = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "quad9_fetch_duration_seconds", Help: "time spent fetching per source", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12)}, []string{"source"})
	ReportDomains  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "quad9_report_domains", Help: "distinct domains written to the last report"})
	LastSuccessRun = prometheus.NewGauge(prometheus.GaugeOpts{Name: "quad9_last_success_timestamp_seconds", Help: "unix time of the last completed run"})
)

func init() {
	Registry.MustRegister(SourceDomains, EndpointFetch, FetchDuration, ReportDomains, LastSuccessRun)
}

// Push sends the registry to a Prometheus Pushgateway under job.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(Registry).PushContext(ctx)
}
