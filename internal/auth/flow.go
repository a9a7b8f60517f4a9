// Package auth はGoogle OAuthのログインフローを提供する。
// 認可URLを表示し、ローカルのコールバックで受け取った認可コードをアクセストークンに交換する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hitoshi/careerlog/internal/model"
)

// DefaultLoginTimeout はコールバックを待つ既定の時間。
const DefaultLoginTimeout = 5 * time.Minute

// Authenticator は認可URLの取得と認可コードの交換を行う。*resource.AuthServiceがこのインターフェースを満たす。
type Authenticator interface {
	LoginURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code string) (*model.User, error)
}

// FlowConfig はログインフローの設定。
type FlowConfig struct {
	// CallbackAddr はコールバックを待ち受けるアドレス（例: 127.0.0.1:5173）。
	CallbackAddr string
	// Listener が指定された場合はCallbackAddrの代わりに使う。
	Listener net.Listener
	Timeout  time.Duration
}

// Flow はブラウザを使ったログインフロー。
type Flow struct {
	auth   Authenticator
	config FlowConfig
	out    io.Writer
	logger *slog.Logger
}

// NewFlow はFlowを生成する。認可URLなどの案内はoutに出力する。
func NewFlow(auth Authenticator, config FlowConfig, out io.Writer, logger *slog.Logger) *Flow {
	if config.Timeout <= 0 {
		config.Timeout = DefaultLoginTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{auth: auth, config: config, out: out, logger: logger}
}

// Login は認可URLを表示してコールバックを待ち、セッションを確立する。
func (f *Flow) Login(ctx context.Context) (*model.User, error) {
	authURL, err := f.auth.LoginURL(ctx)
	if err != nil {
		return nil, err
	}

	ln := f.config.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", f.config.CallbackAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", f.config.CallbackAddr, err)
		}
	}

	cb := NewCallbackServer(f.logger)
	srv := &http.Server{
		Handler:           cb.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("コールバックサーバーが停止しました",
				slog.String("error", err.Error()),
			)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	f.logger.Info("コールバックの待ち受けを開始しました",
		slog.String("addr", ln.Addr().String()),
	)
	fmt.Fprintf(f.out, "ブラウザで次のURLを開いてログインしてください:\n\n  %s\n\n", authURL)

	waitCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	code, err := cb.Wait(waitCtx)
	if err != nil {
		return nil, err
	}
	return f.LoginWithCode(ctx, code)
}

// LoginWithCode は取得済みの認可コードでセッションを確立する。
func (f *Flow) LoginWithCode(ctx context.Context, code string) (*model.User, error) {
	user, err := f.auth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	f.logger.Info("ログインに成功しました",
		slog.String("user_id", user.ID),
	)
	return user, nil
}
