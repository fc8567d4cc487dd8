// Package metrics はアラームサービスのPrometheusメトリクスを定義する。
// すべてのメソッドはnilレシーバで呼び出しても何もしない。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "teamboard_alarm"

// Collector はサービスのメトリクスをまとめる。
type Collector struct {
	activeStreams prometheus.Gauge
	connects      *prometheus.CounterVec
	closes        *prometheus.CounterVec
	pushes        *prometheus.CounterVec
	pushDuration  prometheus.Histogram
	created       *prometheus.CounterVec
	purged        prometheus.Counter
}

// New はregに登録したCollectorを返す。
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of live alarm streams held in the registry.",
		}),
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connects_total",
			Help:      "Stream connect attempts by result.",
		}, []string{"result"}),
		closes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_closes_total",
			Help:      "Streams that reached a terminal state, by state.",
		}, []string{"state"}),
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Live push attempts by outcome.",
		}, []string{"outcome"}),
		pushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_duration_seconds",
			Help:      "Duration of a single live push write.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		created: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Alarm records persisted, by kind.",
		}, []string{"kind"}),
		purged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_purged_total",
			Help:      "Soft-deleted alarm records removed by the cleanup job.",
		}),
	}
}

// StreamOpened は登録中のストリーム数を1増やす。
func (c *Collector) StreamOpened() {
	if c == nil {
		return
	}
	c.activeStreams.Inc()
}

// StreamClosed は終了状態を記録し、登録中のストリーム数を1減らす。
func (c *Collector) StreamClosed(state string) {
	if c == nil {
		return
	}
	c.activeStreams.Dec()
	c.closes.WithLabelValues(state).Inc()
}

// Connect は接続試行の結果を記録する。
func (c *Collector) Connect(result string) {
	if c == nil {
		return
	}
	c.connects.WithLabelValues(result).Inc()
}

// Push はプッシュ結果と所要時間を記録する。
func (c *Collector) Push(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.pushes.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.pushDuration.Observe(d.Seconds())
	}
}

// Created はアラームの記録を種別ごとに数える。
func (c *Collector) Created(kind string) {
	if c == nil {
		return
	}
	c.created.WithLabelValues(kind).Inc()
}

// Purged はパージされた件数を加算する。
func (c *Collector) Purged(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.purged.Add(float64(n))
}
