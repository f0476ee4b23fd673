package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolStatter is the part of *pgxpool.Pool the collector reads.
type poolStatter interface {
	Stat() *pgxpool.Stat
}

// poolCollector exports pgxpool statistics as gauges on every scrape.
type poolCollector struct {
	pool      poolStatter
	total     *prometheus.Desc
	inUse     *prometheus.Desc
	idle      *prometheus.Desc
	max       *prometheus.Desc
	waitCount *prometheus.Desc
}

func newPoolCollector(pool poolStatter) *poolCollector {
	labels := prometheus.Labels{"store_driver": "postgres"}
	return &poolCollector{
		pool: pool,
		total: prometheus.NewDesc("taskchat_db_connections_open",
			"Open connections in the pool.", nil, labels),
		inUse: prometheus.NewDesc("taskchat_db_connections_in_use",
			"Connections currently acquired.", nil, labels),
		idle: prometheus.NewDesc("taskchat_db_connections_idle",
			"Idle connections in the pool.", nil, labels),
		max: prometheus.NewDesc("taskchat_db_connections_max",
			"Configured maximum pool size.", nil, labels),
		waitCount: prometheus.NewDesc("taskchat_db_connection_waits_total",
			"Acquires that had to wait for a connection.", nil, labels),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.inUse
	ch <- c.idle
	ch <- c.max
	ch <- c.waitCount
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(st.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(st.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(st.EmptyAcquireCount()))
}
