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
// サービス層、ミドルウェア、インポーターから利用する。
type MetricsCollector interface {
	RecordEntryCreated()
	RecordEntryDeleted()
	RecordVisit()
	RecordAccessDenied(operation string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordFetchFailure(reason string)
	RecordEntriesImported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	entriesCreated  prometheus.Counter
	entriesDeleted  prometheus.Counter
	visits          prometheus.Counter
	accessDenied    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	fetchFail       *prometheus.CounterVec
	entriesImported prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interne_entries_created_total",
			Help: "作成されたエントリの合計数",
		}),
		entriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interne_entries_deleted_total",
			Help: "削除されたエントリの合計数",
		}),
		visits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interne_visits_total",
			Help: "記録された訪問の合計数",
		}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interne_access_denied_total",
			Help: "権限不足で拒否された操作の数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interne_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "interne_fetch_latency_seconds",
			Help:    "ページ・フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interne_fetch_fail_total",
			Help: "ページ・フィード取得失敗の数",
		}, []string{"reason"}),
		entriesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interne_entries_imported_total",
			Help: "インポートされたエントリの合計数",
		}),
	}

	reg.MustRegister(
		c.entriesCreated,
		c.entriesDeleted,
		c.visits,
		c.accessDenied,
		c.httpStatus,
		c.fetchLatency,
		c.fetchFail,
		c.entriesImported,
	)

	return c
}

// RecordEntryCreated はエントリ作成を記録する。
func (c *Collector) RecordEntryCreated() {
	c.entriesCreated.Inc()
}

// RecordEntryDeleted はエントリ削除を記録する。
func (c *Collector) RecordEntryDeleted() {
	c.entriesDeleted.Inc()
}

// RecordVisit は訪問を記録する。
func (c *Collector) RecordVisit() {
	c.visits.Inc()
}

// RecordAccessDenied は権限不足による拒否を操作別に記録する。
func (c *Collector) RecordAccessDenied(operation string) {
	c.accessDenied.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordFetchFailure は取得失敗を理由別に記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordEntriesImported はインポート件数を記録する。
func (c *Collector) RecordEntriesImported(count int) {
	c.entriesImported.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// Acceptヘッダーで要求された場合はOpenMetrics形式で返す。
// 一部のメトリクスの収集に失敗しても残りは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// Nop は何も記録しないMetricsCollector。CLIやテストで使用する。
type Nop struct{}

func (Nop) RecordEntryCreated()              {}
func (Nop) RecordEntryDeleted()              {}
func (Nop) RecordVisit()                     {}
func (Nop) RecordAccessDenied(string)        {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordEntriesImported(int)        {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
