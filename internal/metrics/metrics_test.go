package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベル値が一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

// TestRecordAPIRequest_LabelsByMethodAndStatus はメソッドとステータス別にカウントされることを検証する。
func TestRecordAPIRequest_LabelsByMethodAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPIRequest("GET", 200)
	c.RecordAPIRequest("GET", 200)
	c.RecordAPIRequest("DELETE", 401)

	m := findMetric(t, reg, "careerlog_api_requests_total", map[string]string{"method": "GET", "status_code": "200"})
	if m == nil {
		t.Fatal("GET 200 のメトリクスが見つかりません")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("GET 200 = %v, want 2", got)
	}

	m = findMetric(t, reg, "careerlog_api_requests_total", map[string]string{"method": "DELETE", "status_code": "401"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("DELETE 401 = 1 であるべきです")
	}
}

// TestRecordAPILatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordAPILatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPILatency(150 * time.Millisecond)

	m := findMetric(t, reg, "careerlog_api_latency_seconds", nil)
	if m == nil {
		t.Fatal("careerlog_api_latency_seconds が見つかりません")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

// TestCacheAndStaleCounters はキャッシュ関連カウンタがリソース別に増加することを検証する。
func TestCacheAndStaleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("problems")
	c.RecordCacheMiss("problems")
	c.RecordCacheMiss("problems")
	c.RecordStaleResponseDiscarded("learnings")
	c.RecordSessionTeardown("unauthorized")

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"careerlog_cache_hits_total", map[string]string{"resource": "problems"}, 1},
		{"careerlog_cache_misses_total", map[string]string{"resource": "problems"}, 2},
		{"careerlog_stale_responses_discarded_total", map[string]string{"resource": "learnings"}, 1},
		{"careerlog_session_teardowns_total", map[string]string{"reason": "unauthorized"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := findMetric(t, reg, tt.name, tt.labels)
			if m == nil {
				t.Fatalf("%s が見つかりません", tt.name)
			}
			if got := m.GetCounter().GetValue(); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

// TestHandler_ServesMetrics はハンドラーがテキスト形式でメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCacheHit("dashboard")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "careerlog_cache_hits_total") {
		t.Error("response should contain careerlog_cache_hits_total metric")
	}
}

// TestNop_DoesNotPanic はNopが全メソッドを安全に受け付けることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordAPIRequest("GET", 200)
	c.RecordAPILatency(time.Second)
	c.RecordSessionTeardown("logout")
	c.RecordCacheHit("x")
	c.RecordCacheMiss("x")
	c.RecordStaleResponseDiscarded("x")
}
