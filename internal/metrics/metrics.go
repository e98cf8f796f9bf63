// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	otpRequested    prometheus.Counter
	otpSuccess      prometheus.Counter
	otpFailure      *prometheus.CounterVec
	accountsCreated prometheus.Counter
	sessionsIssued  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		otpRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_otp_requested_total",
			Help: "発行された認証コードの合計数",
		}),
		otpSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_otp_verify_success_total",
			Help: "認証コード検証成功の合計数",
		}),
		otpFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_otp_verify_failure_total",
			Help: "認証コード検証失敗の合計数（理由別）",
		}, []string{"reason"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_accounts_created_total",
			Help: "create-account経由で作成されたアカウントの合計数",
		}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sessions_issued_total",
			Help: "発行されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.otpRequested,
		c.otpSuccess,
		c.otpFailure,
		c.accountsCreated,
		c.sessionsIssued,
	)

	return c
}

// RecordOTPRequested は認証コード発行を記録する。
func (c *Collector) RecordOTPRequested() {
	c.otpRequested.Inc()
}

// RecordOTPVerifySuccess は認証コード検証成功を記録する。
func (c *Collector) RecordOTPVerifySuccess() {
	c.otpSuccess.Inc()
}

// RecordOTPVerifyFailure は認証コード検証失敗を理由付きで記録する。
func (c *Collector) RecordOTPVerifyFailure(reason string) {
	c.otpFailure.WithLabelValues(reason).Inc()
}

// RecordAccountCreated はアカウント作成を記録する。
func (c *Collector) RecordAccountCreated() {
	c.accountsCreated.Inc()
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
