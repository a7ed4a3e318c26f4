package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// serveMetrics starts a background HTTP server exposing reg's metrics on
// addr under /metrics. A listener failure is logged but never fatal:
// metrics are an ambient concern, not a requirement for the operation to
// proceed.
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Warnf("blhost: metrics listener on %s stopped: %v", addr, err)
		}
	}()
}
