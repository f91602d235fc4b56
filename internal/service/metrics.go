package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline instrumentation, exposed on the server's /metrics endpoint.
var (
	samplesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_samples_collected_total",
		Help: "Total number of host samples collected",
	})

	aggregatesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_aggregates_stored_total",
		Help: "Total number of aggregates persisted",
	})

	anomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_anomalies_detected_total",
		Help: "Total number of anomalies detected",
	})

	detectionTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_detection_ticks_total",
		Help: "Detection ticks by outcome",
	}, []string{"outcome"})

	statusLogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_status_log_entries",
		Help: "Current number of entries in the rolling status log",
	})

	bufferedSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_buffered_samples",
		Help: "Samples currently waiting for aggregation",
	})
)
