// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type Recorder interface {
	RecordAuthEvent(operation, outcome string)
	RecordNotification(purpose string, ok bool)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartkhata_auth_events_total",
			Help: "アカウント操作の結果別件数",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartkhata_otp_notifications_total",
			Help: "OTP通知の送信結果別件数",
		}, []string{"purpose", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartkhata_http_requests_total",
			Help: "HTTPリクエストのルート・ステータスコード別件数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartkhata_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.notifications,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordAuthEvent はアカウント操作の結果を記録する。
// outcomeは"success"、エラーコード、または"error"。
func (c *Collector) RecordAuthEvent(operation, outcome string) {
	c.authEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordNotification はOTP通知の送信結果を記録する。
func (c *Collector) RecordNotification(purpose string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.notifications.WithLabelValues(purpose, result).Inc()
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeはパスパラメータを含まないルートパターンを渡す。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
