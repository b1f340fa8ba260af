package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/datagata/gata/pkg/models"
	"github.com/datagata/gata/pkg/provider"
)

// otherProvider labels outcomes from providers outside provider.Kinds.
const otherProvider = "other"

func providerLabel(name string) string {
	if k, ok := provider.ParseKind(name); ok {
		return string(k)
	}
	return otherProvider
}

// PrometheusObserver mirrors recorded outcomes into Prometheus collectors.
type PrometheusObserver struct {
	queries *prometheus.CounterVec
	latency *prometheus.HistogramVec
	cost    *prometheus.CounterVec
}

var _ Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gata_provider_queries_total",
				Help: "Provider calls by outcome",
			},
			[]string{"provider", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gata_provider_latency_milliseconds",
				Help:    "Provider call latency in milliseconds",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
			[]string{"provider"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gata_provider_cost_usd_total",
				Help: "Estimated provider cost in USD",
			},
			[]string{"provider"},
		),
	}
	for _, c := range []prometheus.Collector{o.queries, o.latency, o.cost} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Observe implements Observer.
func (o *PrometheusObserver) Observe(out models.ProviderOutcome) {
	status := "success"
	if !out.Success {
		status = "failure"
	}
	label := providerLabel(out.Provider)
	o.queries.WithLabelValues(label, status).Inc()
	o.latency.WithLabelValues(label).Observe(out.LatencyMs)
	if out.CostUSD > 0 {
		o.cost.WithLabelValues(label).Add(out.CostUSD)
	}
}
