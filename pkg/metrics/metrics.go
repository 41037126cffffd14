// Package metrics 定义 Prometheus 指标，通过 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/grocerec/model"
)

// 请求结果
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerec_recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"endpoint", "outcome"},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grocerec_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	RecommendResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grocerec_recommend_result_items",
			Help:    "Number of items returned per successful request",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	BundleReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocerec_bundle_reloads_total",
			Help: "Total number of bundle reload attempts",
		},
		[]string{"source", "outcome"},
	)

	BundleLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grocerec_bundle_load_duration_seconds",
			Help:    "Duration of bundle loads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	BundleUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grocerec_bundle_users",
			Help: "Number of users in the active bundle",
		},
	)

	BundleSeasonalRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grocerec_bundle_seasonal_records",
			Help: "Number of seasonal popularity records in the active bundle",
		},
	)
)

// RecordRecommend 记录一次推荐请求。
func RecordRecommend(endpoint, outcome string, duration time.Duration, items int) {
	RecommendRequests.WithLabelValues(endpoint, outcome).Inc()
	RecommendDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if outcome == OutcomeOK {
		RecommendResultSize.Observe(float64(items))
	}
}

// RecordReload 记录一次数据包加载；成功时同步更新数据包规模。
func RecordReload(source string, duration time.Duration, stats *model.Stats, err error) {
	BundleLoadDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		BundleReloads.WithLabelValues(source, OutcomeError).Inc()
		return
	}
	BundleReloads.WithLabelValues(source, OutcomeOK).Inc()
	if stats != nil {
		BundleUsers.Set(float64(stats.Users))
		BundleSeasonalRecords.Set(float64(stats.SeasonalRecords))
	}
}
