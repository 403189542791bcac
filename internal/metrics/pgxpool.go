package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

type poolCollector struct {
	pool PoolStater

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquires     *prometheus.Desc
	emptyWaits   *prometheus.Desc
	acquireTotal *prometheus.Desc
}

// NewPoolCollector reports the statistics of a pgx pool, labelled with the
// pool's name. Values are read at scrape time.
func NewPoolCollector(name string, pool PoolStater) prometheus.Collector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("sitepublish_db_pool_"+metric, help, nil, labels)
	}
	return &poolCollector{
		pool:         pool,
		acquired:     desc("acquired_conns", "Connections currently checked out of the pool"),
		idle:         desc("idle_conns", "Idle connections in the pool"),
		total:        desc("total_conns", "Open connections in the pool"),
		max:          desc("max_conns", "Maximum size of the pool"),
		acquires:     desc("acquires_total", "Successful connection acquires"),
		emptyWaits:   desc("empty_acquires_total", "Acquires that had to wait because the pool was empty"),
		acquireTotal: desc("acquire_seconds_total", "Time spent acquiring connections"),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.acquired, c.idle, c.total, c.max, c.acquires, c.emptyWaits, c.acquireTotal} {
		ch <- d
	}
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyWaits, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireTotal, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

// RegisterPool exposes the pool's statistics on the default registry.
func RegisterPool(name string, pool *pgxpool.Pool) {
	prometheus.MustRegister(NewPoolCollector(name, pool))
}
