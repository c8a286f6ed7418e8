package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simkube-go/sk-tracer/internal/config"
)

// MetricsNamespace prefixes every sk-tracer metric.
const MetricsNamespace = "sk_tracer"

// CreateRegistry returns a registry with the go runtime and process collectors.
func CreateRegistry() *prometheus.Registry {
	ret := prometheus.NewRegistry()

	ret.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return ret
}

// CreateMetricsServer serves the metrics of gatherer on /metrics and a liveness endpoint on /healthz.
func CreateMetricsServer(conf config.Metrics, gatherer prometheus.Gatherer) *http.Server {
	router := http.NewServeMux()

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ret := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           router,
		IdleTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ret.SetKeepAlivesEnabled(true)

	return ret
}
