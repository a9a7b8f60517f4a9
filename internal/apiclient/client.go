// Package apiclient はバックエンドAPIへの認証付きHTTPクライアントを提供する。
// すべてのリクエストに永続化済みのBearerトークンを付与し、
// 401を受け取った場合はセッションを破棄する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/careerlog/internal/metrics"
	"github.com/hitoshi/careerlog/internal/storage"
)

const headerRequestID = "X-Request-ID"

// SessionTerminator は401受信時に破棄するセッションを表す。
// session.Storeがこのインターフェースを満たす。
type SessionTerminator interface {
	Token() string
	Logout(ctx context.Context) error
}

// Config はClientの設定を保持する。
type Config struct {
	BaseURL   string        // 例: http://localhost:8000/api/v1
	Timeout   time.Duration // リクエスト全体のタイムアウト
	RateLimit rate.Limit    // 送信レート（req/sec）。0以下で無制限
	Burst     int           // 送信バーストサイズ
}

// Client はバックエンドAPIのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     storage.Store
	session    SessionTerminator
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// New はClientを生成する。
// トークンはリクエストごとにtokensから読み出すため、別プロセスでのログインも反映される。
// sessionがnilの場合、401を受けてもセッションの破棄は行わない。
func New(cfg Config, tokens storage.Store, session SessionTerminator, m metrics.MetricsCollector, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &loggingTransport{
				next:    http.DefaultTransport,
				logger:  logger,
				metrics: m,
			},
		},
		tokens:  tokens,
		session: session,
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
		logger:  logger,
	}
}

// BaseURL はAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get はGETリクエストを送信し、レスポンスをoutにデコードする。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// Post はbodyをJSONとしてPOSTし、レスポンスをoutにデコードする。
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Put はbodyをJSONとしてPUTし、レスポンスをoutにデコードする。
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, body, out)
}

// Delete はDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Upload はファイルをmultipart/form-dataのfileフィールドとして送信する。
func (c *Client) Upload(ctx context.Context, path, filename, contentType string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType(), out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, found, err := c.tokens.Get(ctx, storage.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if found && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.teardownSession(ctx, method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &HTTPError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Detail: parseDetail(raw),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// teardownSession は401を受けた際、トークンを保持している場合に限りセッションを破棄する。
func (c *Client) teardownSession(ctx context.Context, method, path string) {
	if c.session == nil || c.session.Token() == "" {
		return
	}
	c.logger.Warn("認証エラーのためセッションを破棄します",
		slog.String("method", method),
		slog.String("path", path),
	)
	c.metrics.RecordSessionTeardown("unauthorized")
	if err := c.session.Logout(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("セッションの破棄に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
