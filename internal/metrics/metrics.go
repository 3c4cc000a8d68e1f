// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ゲートウェイ、資格情報キャッシュ、HTTPミドルウェアから利用する。
type Recorder interface {
	RecordGatewayRequest(task, result string)
	RecordCompletionLatency(task string, duration time.Duration)
	RecordExtractionTier(shape, tier string)
	RecordTokenRefresh(result string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gatewayRequests   *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	extractionTier    *prometheus.CounterVec
	tokenRefresh      *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlog_gateway_requests_total",
			Help: "AIタスク呼び出しの結果別件数",
		}, []string{"task", "result"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindlog_completion_latency_seconds",
			Help:    "モデル呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}, []string{"task"}),
		extractionTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlog_extraction_tier_total",
			Help: "構造化抽出で値が得られた段階別の件数",
		}, []string{"shape", "tier"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlog_token_refresh_total",
			Help: "アクセストークン更新の結果別件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindlog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.gatewayRequests,
		c.completionLatency,
		c.extractionTier,
		c.tokenRefresh,
		c.httpStatus,
	)

	return c
}

// RecordGatewayRequest はAIタスク呼び出しの結果を記録する。
func (c *Collector) RecordGatewayRequest(task, result string) {
	c.gatewayRequests.WithLabelValues(task, result).Inc()
}

// RecordCompletionLatency はモデル呼び出しのレイテンシを記録する。
func (c *Collector) RecordCompletionLatency(task string, duration time.Duration) {
	c.completionLatency.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordExtractionTier は構造化抽出の段階を記録する。
func (c *Collector) RecordExtractionTier(shape, tier string) {
	c.extractionTier.WithLabelValues(shape, tier).Inc()
}

// RecordTokenRefresh はアクセストークン更新の結果を記録する。
func (c *Collector) RecordTokenRefresh(result string) {
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。テストや未設定時に使う。
type Nop struct{}

func (Nop) RecordGatewayRequest(string, string)           {}
func (Nop) RecordCompletionLatency(string, time.Duration) {}
func (Nop) RecordExtractionTier(string, string)           {}
func (Nop) RecordTokenRefresh(string)                     {}
func (Nop) RecordHTTPStatus(int)                          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
