// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginNotRegistered()
	RecordLoginFailure()
	RecordTokenIssued()
	RecordGuardDenied(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	loginNotRegistered prometheus.Counter
	loginFail          prometheus.Counter
	tokenIssued        prometheus.Counter
	guardDenied        *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestDuration    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meibo_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginNotRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meibo_login_not_registered_total",
			Help: "未登録ユーザーによるログイン試行の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meibo_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		tokenIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meibo_token_issued_total",
			Help: "発行されたJWTトークンの合計数",
		}),
		guardDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meibo_guard_denied_total",
			Help: "アクセスガードによる拒否の理由別合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meibo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meibo_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginNotRegistered,
		c.loginFail,
		c.tokenIssued,
		c.guardDenied,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginNotRegistered は未登録ユーザーのログイン試行を記録する。
func (c *Collector) RecordLoginNotRegistered() {
	c.loginNotRegistered.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordTokenIssued はJWTトークンの発行を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokenIssued.Inc()
}

// RecordGuardDenied はアクセスガードによる拒否を理由付きで記録する。
func (c *Collector) RecordGuardDenied(reason string) {
	c.guardDenied.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
