// Package metrics holds the Prometheus collectors package executor updates
// as it runs a pass: promauto-registered counters, a histogram, and a gauge
// covering nodes, resources, and passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskgraph_nodes_scheduled_total",
		Help: "Total number of nodes pushed onto the ready queue.",
	})

	NodesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskgraph_nodes_executed_total",
		Help: "Total number of nodes whose Run method returned.",
	})

	NodesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskgraph_nodes_failed_total",
		Help: "Total number of nodes whose Run method returned an error.",
	})

	ResourcesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskgraph_resources_published_total",
		Help: "Total number of resource publications, labelled by resource name.",
	}, []string{"resource"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskgraph_pass_duration_seconds",
		Help:    "End-to-end duration of one executor pass.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	ReadyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskgraph_ready_queue_depth",
		Help: "Current number of nodes waiting in the ready queue (threaded executor only).",
	})

	WorkersParked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskgraph_workers_parked",
		Help: "Current number of worker goroutines waiting on the condition variable.",
	})
)
