package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demux_tile_requests_total",
		Help: "Total number of tile requests, by operation and serving source",
	}, []string{"operation", "source"})

	TileNoCoverage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demux_tile_no_coverage_total",
		Help: "Total number of tile requests for zoom levels no range covers",
	}, []string{"operation"})

	TileNotFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demux_tile_not_found_total",
		Help: "Total number of tile reads the serving source had no tile for",
	}, []string{"source"})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demux_backend_errors_total",
		Help: "Total number of errors returned by tile sources",
	}, []string{"operation", "source"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "demux_backend_latency_seconds",
		Help:    "Latency of delegated tile operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "source"})

	SourceLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demux_source_loads_total",
		Help: "Total number of tile source loads, by scheme and result",
	}, []string{"scheme", "result"})

	SourceLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "demux_source_load_duration_seconds",
		Help:    "Duration of tile source loads in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"scheme"})
)
