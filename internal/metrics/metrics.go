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
// APIクライアント、クエリキャッシュ、一覧コントローラーから利用する。
type MetricsCollector interface {
	RecordAPIRequest(method string, statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordSessionTeardown(reason string)
	RecordCacheHit(resource string)
	RecordCacheMiss(resource string)
	RecordStaleResponseDiscarded(resource string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests      *prometheus.CounterVec
	apiLatency       prometheus.Histogram
	sessionTeardowns *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	staleDiscarded   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlog_api_requests_total",
			Help: "メソッド・ステータスコード別のAPIリクエスト数",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careerlog_api_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionTeardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlog_session_teardowns_total",
			Help: "理由別のセッション破棄数",
		}, []string{"reason"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlog_cache_hits_total",
			Help: "リソース別のクエリキャッシュヒット数",
		}, []string{"resource"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlog_cache_misses_total",
			Help: "リソース別のクエリキャッシュミス数",
		}, []string{"resource"}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlog_stale_responses_discarded_total",
			Help: "後発のリクエストに追い越されて破棄されたレスポンス数",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.sessionTeardowns,
		c.cacheHits,
		c.cacheMisses,
		c.staleDiscarded,
	)

	return c
}

// RecordAPIRequest はAPIリクエストの結果を記録する。
// 通信エラーでレスポンスがない場合はstatusCode=0として記録する。
func (c *Collector) RecordAPIRequest(method string, statusCode int) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordSessionTeardown はセッション破棄を記録する。
func (c *Collector) RecordSessionTeardown(reason string) {
	c.sessionTeardowns.WithLabelValues(reason).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(resource string) {
	c.cacheHits.WithLabelValues(resource).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(resource string) {
	c.cacheMisses.WithLabelValues(resource).Inc()
}

// RecordStaleResponseDiscarded は破棄した古いレスポンスを記録する。
func (c *Collector) RecordStaleResponseDiscarded(resource string) {
	c.staleDiscarded.WithLabelValues(resource).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int) {}
func (Nop) RecordAPILatency(time.Duration) {}
func (Nop) RecordSessionTeardown(string) {}
func (Nop) RecordCacheHit(string) {}
func (Nop) RecordCacheMiss(string) {}
func (Nop) RecordStaleResponseDiscarded(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
