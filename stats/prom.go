/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter exposes counters as Prometheus gauges
type PrometheusExporter struct {
	registry *prometheus.Registry
	stats    *Stats

	mux    sync.Mutex
	gauges map[string]prometheus.Gauge
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(s *Stats) *PrometheusExporter {
	return &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		stats:    s,
		gauges:   map[string]prometheus.Gauge{},
	}
}

// Handler returns http handler serving /metrics, refreshing gauges on every scrape
func (e *PrometheusExporter) Handler() http.Handler {
	metrics := promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.scrapeMetrics()
		metrics.ServeHTTP(w, r)
	}))
	return mux
}

// Serve runs http server until ctx is done
func (e *PrometheusExporter) Serve(ctx context.Context, listenPort int) error {
	addr := fmt.Sprintf(":%d", listenPort)
	log.Infof("Starting prometheus exporter on %s", addr)
	return serve(ctx, addr, e.Handler())
}

func (e *PrometheusExporter) scrapeMetrics() {
	e.mux.Lock()
	defer e.mux.Unlock()
	for mkey, mval := range e.stats.Get() {
		promCollector, ok := e.gauges[mkey]
		if !ok {
			promCollector = prometheus.NewGauge(prometheus.GaugeOpts{
				Name: flattenKey(mkey),
				Help: mkey,
			})
			if err := e.registry.Register(promCollector); err != nil {
				are := &prometheus.AlreadyRegisteredError{}
				if errors.As(err, are) {
					promCollector = are.ExistingCollector.(prometheus.Gauge)
				} else {
					log.Errorf("failed to register metric %s %v", mkey, err)
					continue
				}
			}
			e.gauges[mkey] = promCollector
		}
		promCollector.Set(float64(mval))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
