package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/careerlog/internal/storage"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// mockSession はSessionTerminatorのモック。
type mockSession struct {
	tokenFn  func() string
	logoutFn func(ctx context.Context) error
	logouts  int
}

func (m *mockSession) Token() string {
	if m.tokenFn != nil {
		return m.tokenFn()
	}
	return ""
}

func (m *mockSession) Logout(ctx context.Context) error {
	m.logouts++
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, kv storage.Store, sess SessionTerminator, buf *bytes.Buffer) *Client {
	t.Helper()
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return New(Config{BaseURL: srv.URL + "/api/v1/", Timeout: 5 * time.Second}, kv, sess, nil, newTestLogger(buf))
}

func TestClient_AttachesPersistedToken(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	kv := storage.NewMemoryStore()
	_ = kv.Set(ctx, storage.KeyToken, "persisted-token")

	c := newTestClient(t, srv, kv, nil, nil)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Get(ctx, "/problems", nil, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotAuth != "Bearer persisted-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer persisted-token")
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID が付与されていません")
	}
	if !out.OK {
		t.Error("レスポンスがデコードされていません")
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, storage.NewMemoryStore(), nil, nil)
	if err := c.Delete(context.Background(), "/problems/1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_BuildsURLWithQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, storage.NewMemoryStore(), nil, nil)
	q := map[string][]string{"page": {"2"}, "search": {"two sum"}}
	if err := c.Get(context.Background(), "/problems", q, &struct{}{}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotPath != "/api/v1/problems" {
		t.Errorf("path = %q, want %q", gotPath, "/api/v1/problems")
	}
	if gotQuery != "page=2&search=two+sum" {
		t.Errorf("query = %q, want %q", gotQuery, "page=2&search=two+sum")
	}
}

func TestClient_401TearsDownSessionWhenTokenHeld(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	sess := &mockSession{tokenFn: func() string { return "tok" }}
	var buf bytes.Buffer
	c := newTestClient(t, srv, storage.NewMemoryStore(), sess, &buf)

	err := c.Get(context.Background(), "/dashboard/stats", nil, &struct{}{})
	if !IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized(%v) = false, want true", err)
	}
	if Detail(err) != "Could not validate credentials" {
		t.Errorf("Detail = %q", Detail(err))
	}
	if sess.logouts != 1 {
		t.Errorf("Logout呼び出し回数 = %d, want 1", sess.logouts)
	}
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("WARNログが出力されていません: %s", buf.String())
	}
}

func TestClient_401WithoutTokenDoesNotLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sess := &mockSession{tokenFn: func() string { return "" }}
	c := newTestClient(t, srv, storage.NewMemoryStore(), sess, nil)

	if err := c.Post(context.Background(), "/auth/google/callback", map[string]string{"code": "x"}, nil); !IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401", err)
	}
	if sess.logouts != 0 {
		t.Errorf("Logout呼び出し回数 = %d, want 0", sess.logouts)
	}
}

func TestClient_ErrorStatusPassesThrough(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"文字列detail", http.StatusNotFound, `{"detail":"Problem not found"}`, "Problem not found"},
		{"構造化detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","title"]}]}`, `[{"loc":["body","title"]}]`},
		{"JSONでない本文", http.StatusBadGateway, "upstream down", "upstream down"},
		{"空の本文", http.StatusInternalServerError, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			sess := &mockSession{tokenFn: func() string { return "tok" }}
			c := newTestClient(t, srv, storage.NewMemoryStore(), sess, nil)
			err := c.Get(context.Background(), "/problems/1", nil, &struct{}{})

			if got := StatusCode(err); got != tt.status {
				t.Errorf("StatusCode = %d, want %d", got, tt.status)
			}
			if got := Detail(err); got != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", got, tt.wantDetail)
			}
			if sess.logouts != 0 {
				t.Errorf("401以外でLogoutが呼ばれました")
			}
		})
	}
}

func TestClient_PostSendsJSON(t *testing.T) {
	var gotBody map[string]any
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, storage.NewMemoryStore(), nil, nil)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.Post(context.Background(), "/problems", map[string]string{"title": "Two Sum"}, &out); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotBody["title"] != "Two Sum" {
		t.Errorf("body.title = %v, want Two Sum", gotBody["title"])
	}
	if out.ID != "p-1" {
		t.Errorf("ID = %q, want p-1", out.ID)
	}
}

func TestClient_UploadSendsMultipartFile(t *testing.T) {
	var gotName, gotType string
	var gotContent []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotContent, _ = io.ReadAll(f)
		_, _ = w.Write([]byte(`{"url":"/api/v1/uploads/abc.png"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, storage.NewMemoryStore(), nil, nil)
	var out struct {
		URL string `json:"url"`
	}
	err := c.Upload(context.Background(), "/uploads", "diagram.png", "image/png", strings.NewReader("PNGDATA"), &out)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotName != "diagram.png" {
		t.Errorf("filename = %q, want diagram.png", gotName)
	}
	if gotType != "image/png" {
		t.Errorf("part Content-Type = %q, want image/png", gotType)
	}
	if string(gotContent) != "PNGDATA" {
		t.Errorf("content = %q, want PNGDATA", gotContent)
	}
	if out.URL != "/api/v1/uploads/abc.png" {
		t.Errorf("URL = %q", out.URL)
	}
}

func TestClient_LogsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := newTestClient(t, srv, storage.NewMemoryStore(), nil, &buf)
	_ = c.Get(context.Background(), "/dashboard/stats", nil, &struct{}{})

	var entry map[string]any
	line := strings.SplitN(strings.TrimSpace(buf.String()), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("ログがJSONではありません: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "api_request" {
		t.Errorf("msg = %v, want api_request", entry["msg"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["path"] != "/api/v1/dashboard/stats" {
		t.Errorf("path = %v", entry["path"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms がありません")
	}
}
