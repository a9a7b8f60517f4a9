package auth

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/careerlog/internal/middleware"
	"github.com/hitoshi/careerlog/internal/model"
)

// CallbackPath はGoogleの認可後にリダイレクトされるパス。
const CallbackPath = "/auth/callback"

// callbackResult はコールバックで受け取った認可コードまたはエラー。
type callbackResult struct {
	code string
	err  error
}

// CallbackServer はローカルで認可コードを受け取るHTTPハンドラー。
// 受け付けるコールバックは最初の1回のみ。
type CallbackServer struct {
	logger *slog.Logger
	once   sync.Once
	result chan callbackResult
	router chi.Router
}

// NewCallbackServer はCallbackServerを生成する。
func NewCallbackServer(logger *slog.Logger) *CallbackServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CallbackServer{
		logger: logger,
		result: make(chan callbackResult, 1),
	}
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, "callback"))
	r.Use(middleware.NewNoStoreMiddleware())
	r.Get(CallbackPath, s.handleCallback)
	s.router = r
	return s
}

// Handler はHTTPハンドラーを返す。
func (s *CallbackServer) Handler() http.Handler {
	return s.router
}

// Wait はコールバックを受け取るまで待ち、認可コードを返す。
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", model.NewLoginCancelledError("timed out waiting for the authorization callback")
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var res callbackResult
	status := http.StatusOK
	message := "ログインを処理しています。ターミナルに戻ってください。"

	switch {
	case q.Get("error") != "":
		res.err = model.NewLoginCancelledError(q.Get("error"))
		status = http.StatusBadRequest
		message = "Authentication was cancelled or failed"
	case q.Get("code") == "":
		res.err = model.NewLoginFailedError("No authorization code received", nil)
		status = http.StatusBadRequest
		message = "No authorization code received"
	default:
		res.code = q.Get("code")
	}

	accepted := false
	s.once.Do(func() {
		accepted = true
		s.result <- res
	})
	if !accepted {
		s.logger.Warn("重複したコールバックを無視しました")
		status = http.StatusConflict
		message = "このログインは既に処理されています。"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><title>careerlog</title><p>%s</p>", html.EscapeString(message))
}
