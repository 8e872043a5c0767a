// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は実行サイクルのメトリクスを収集する。
// フェッチャー・履歴サービス・ディスパッチャーがそれぞれ必要とする
// 最小インターフェースをすべて実装する。
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       prometheus.Counter
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	slotsDiscovered prometheus.Counter
	slotsNew        prometheus.Counter
	mailSent        prometheus.Counter
	mailFailed      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_fetch_success_total",
			Help: "イベントのスロット取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_fetch_fail_total",
			Help: "イベントのスロット取得失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotwatch_http_status_total",
			Help: "予約サイトからのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotwatch_fetch_latency_seconds",
			Help:    "予約サイトへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		slotsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_slots_discovered_total",
			Help: "発見された候補Slotの合計数",
		}),
		slotsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_slots_new_total",
			Help: "履歴にない新着と判定されたSlotの合計数",
		}),
		mailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_mail_sent_total",
			Help: "配信に成功した通知メールの合計数",
		}),
		mailFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotwatch_mail_failed_total",
			Help: "配信に失敗した通知メールの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.slotsDiscovered,
		c.slotsNew,
		c.mailSent,
		c.mailFailed,
	)

	return c
}

// RecordFetchSuccess はイベントのスロット取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はイベントのスロット取得失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は外部リクエストのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordSlotsDiscovered は発見された候補Slot数を記録する。
func (c *Collector) RecordSlotsDiscovered(count int) {
	c.slotsDiscovered.Add(float64(count))
}

// RecordSlotsNew は新着Slot数を記録する。
func (c *Collector) RecordSlotsNew(count int) {
	c.slotsNew.Add(float64(count))
}

// RecordMailSent は通知メールの配信成功を記録する。
func (c *Collector) RecordMailSent() {
	c.mailSent.Inc()
}

// RecordMailFailed は通知メールの配信失敗を記録する。
func (c *Collector) RecordMailFailed() {
	c.mailFailed.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
