package core

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/searchktools/fast-express/core/pools"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	Connections int64
	Requests    uint64
	NativeHits  uint64
	Workers     pools.WorkerPoolStats
	Buffers     pools.BytePoolStats
	ConnPool    pools.ObjectPoolStats
	GC          pools.GCStats
}

// Stats returns the current engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Connections: e.connections.Load(),
		Requests:    e.requests.Load(),
		NativeHits:  e.nativeHits.Load(),
		Buffers:     e.bytePool.Stats(),
		ConnPool:    e.connPool.Stats(),
		GC:          pools.ReadGCStats(),
	}
	if wp := e.workerPool.Load(); wp != nil {
		s.Workers = wp.Stats()
	}
	return s
}

// Collector exports engine statistics to Prometheus.
type Collector struct {
	engine *Engine

	connections  *prometheus.Desc
	requests     *prometheus.Desc
	nativeHits   *prometheus.Desc
	tasksPending *prometheus.Desc
	tasksInline  *prometheus.Desc
	steals       *prometheus.Desc
	bufferGets   *prometheus.Desc
	bufferMisses *prometheus.Desc
	connHitRate  *prometheus.Desc
	gcPauses     *prometheus.Desc
	gcLastPause  *prometheus.Desc
}

// NewCollector creates a collector for e. Metric names are prefixed with namespace.
func NewCollector(e *Engine, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "engine", name), help, nil, nil)
	}
	return &Collector{
		engine:       e,
		connections:  desc("connections", "Open client connections."),
		requests:     desc("requests_total", "Requests served by the engine."),
		nativeHits:   desc("native_route_hits_total", "Requests served by a native route instead of the catch-all."),
		tasksPending: desc("worker_tasks_pending", "Tasks queued or running in the worker pool."),
		tasksInline:  desc("worker_tasks_inline_total", "Tasks run on the event loop because every worker queue was full."),
		steals:       desc("worker_steals_total", "Tasks a worker took from another worker's queue."),
		bufferGets:   desc("buffer_pool_gets_total", "Read buffers taken from the byte pool."),
		bufferMisses: desc("buffer_pool_misses_total", "Read buffers the byte pool had to allocate."),
		connHitRate:  desc("conn_pool_hit_ratio", "Share of connection objects reused from the pool."),
		gcPauses:     desc("gc_pause_seconds_total", "Total stop-the-world GC pause time."),
		gcLastPause:  desc("gc_last_pause_seconds", "Duration of the most recent GC pause."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.requests
	ch <- c.nativeHits
	ch <- c.tasksPending
	ch <- c.tasksInline
	ch <- c.steals
	ch <- c.bufferGets
	ch <- c.bufferMisses
	ch <- c.connHitRate
	ch <- c.gcPauses
	ch <- c.gcLastPause
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Connections))
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Requests))
	ch <- prometheus.MustNewConstMetric(c.nativeHits, prometheus.CounterValue, float64(s.NativeHits))
	ch <- prometheus.MustNewConstMetric(c.tasksPending, prometheus.GaugeValue, float64(s.Workers.Pending))
	ch <- prometheus.MustNewConstMetric(c.tasksInline, prometheus.CounterValue, float64(s.Workers.Inline))
	ch <- prometheus.MustNewConstMetric(c.steals, prometheus.CounterValue, float64(s.Workers.Steals))
	ch <- prometheus.MustNewConstMetric(c.bufferGets, prometheus.CounterValue, float64(s.Buffers.Gets))
	ch <- prometheus.MustNewConstMetric(c.bufferMisses, prometheus.CounterValue, float64(s.Buffers.Misses))
	ch <- prometheus.MustNewConstMetric(c.connHitRate, prometheus.GaugeValue, s.ConnPool.HitRate)
	ch <- prometheus.MustNewConstMetric(c.gcPauses, prometheus.CounterValue, s.GC.PauseTotal.Seconds())
	ch <- prometheus.MustNewConstMetric(c.gcLastPause, prometheus.GaugeValue, s.GC.LastPause.Seconds())
}
