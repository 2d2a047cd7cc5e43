// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers     prometheus.Gauge
	ActiveRounds      prometheus.Gauge
	BetsSettled       *prometheus.CounterVec
	AmountWagered     *prometheus.CounterVec
	AmountPaid        *prometheus.CounterVec
	SettlementLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rounds",
			Help:      "Number of scheduled rounds currently open",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_settled_total",
			Help:      "Total number of settled bets",
		}, []string{"game"}),
		AmountWagered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_wagered_paise_total",
			Help:      "Total amount staked, in paise",
		}, []string{"game"}),
		AmountPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_paid_paise_total",
			Help:      "Total amount paid out, in paise",
		}, []string{"game"}),
		SettlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_latency_seconds",
			Help:      "Bet settlement latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveRounds,
		m.BetsSettled,
		m.AmountWagered,
		m.AmountPaid,
		m.SettlementLatency,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
	betCount  int64
	mutex     sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("bets", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.betCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRounds(count int) {
	m.metrics.ActiveRounds.Set(float64(count))
}

// ObserveSettlement records one settled bet: count, turnover, payout and
// latency.
func (m *Monitor) ObserveSettlement(game string, stake, payout int64, duration time.Duration) {
	m.metrics.BetsSettled.WithLabelValues(game).Inc()
	m.metrics.AmountWagered.WithLabelValues(game).Add(float64(stake))
	m.metrics.AmountPaid.WithLabelValues(game).Add(float64(payout))
	m.metrics.SettlementLatency.Observe(duration.Seconds())

	m.mutex.Lock()
	m.betCount++
	m.mutex.Unlock()
}
