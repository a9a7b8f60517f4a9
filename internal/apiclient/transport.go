package apiclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/careerlog/internal/metrics"
)

// loggingTransport はリクエストごとにJSON構造化ログとメトリクスを記録するRoundTripper。
// ログにはmethod、path、status、duration_ms、request_idを含む。
type loggingTransport struct {
	next    http.RoundTripper
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)
	durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.RecordAPIRequest(req.Method, status)
	t.metrics.RecordAPILatency(duration)

	args := []any{
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	if id := req.Header.Get(headerRequestID); id != "" {
		args = append(args, slog.String("request_id", id))
	}

	// ステータスコードに応じてログレベルを変更
	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelError
		args = append(args, slog.String("error", err.Error()))
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	t.logger.Log(req.Context(), level, "api_request", args...)
	return resp, err
}
