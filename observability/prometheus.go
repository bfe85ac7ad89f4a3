// Package observability exports docstore metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/docstore"
)

const namespace = "docstore"

// PrometheusCollector implements docstore.MetricsCollector.
type PrometheusCollector struct {
	opLatency       *prometheus.HistogramVec
	writes          *prometheus.CounterVec
	finds           *prometheus.CounterVec
	returned        *prometheus.CounterVec
	indexBuilds     *prometheus.CounterVec
	indexBuildDocs  prometheus.Counter
	checkpoints     *prometheus.CounterVec
	checkpointBytes prometheus.Gauge
}

var _ docstore.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of docstore operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total writes by namespace",
		}, []string{"ns", "type", "status"}),
		finds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finds_total",
			Help:      "Total finds by namespace and leaf stage",
		}, []string{"ns", "stage", "index_only", "status"}),
		returned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_returned_total",
			Help:      "Documents returned by finds",
		}, []string{"ns"}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Total index builds",
		}, []string{"ns", "status"}),
		indexBuildDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_build_documents_total",
			Help:      "Records scanned by index backfills",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Total checkpoints",
		}, []string{"status"}),
		checkpointBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_size_bytes",
			Help:      "Encoded size of the last snapshot",
		}),
	}
	for _, col := range []prometheus.Collector{
		c.opLatency, c.writes, c.finds, c.returned,
		c.indexBuilds, c.indexBuildDocs, c.checkpoints, c.checkpointBytes,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *PrometheusCollector) write(op, ns string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.writes.WithLabelValues(ns, op, s).Inc()
}

// RecordInsert implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordInsert(ns string, d time.Duration, err error) {
	c.write("insert", ns, d, err)
}

// RecordUpdate implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordUpdate(ns string, d time.Duration, err error) {
	c.write("update", ns, d, err)
}

// RecordDelete implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(ns string, d time.Duration, err error) {
	c.write("delete", ns, d, err)
}

// RecordFind implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordFind(ns, stage string, indexOnly bool, returned int, d time.Duration, err error) {
	s := status(err)
	io := "false"
	if indexOnly {
		io = "true"
	}
	c.opLatency.WithLabelValues("find", s).Observe(d.Seconds())
	c.finds.WithLabelValues(ns, stage, io, s).Inc()
	c.returned.WithLabelValues(ns).Add(float64(returned))
}

// RecordIndexBuild implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordIndexBuild(ns string, docs int, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues("index_build", s).Observe(d.Seconds())
	c.indexBuilds.WithLabelValues(ns, s).Inc()
	c.indexBuildDocs.Add(float64(docs))
}

// RecordCheckpoint implements docstore.MetricsCollector.
func (c *PrometheusCollector) RecordCheckpoint(bytes int, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues("checkpoint", s).Observe(d.Seconds())
	c.checkpoints.WithLabelValues(s).Inc()
	if err == nil {
		c.checkpointBytes.Set(float64(bytes))
	}
}
