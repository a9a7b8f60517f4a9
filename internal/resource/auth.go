package resource

import (
	"context"
	"log/slog"

	"github.com/hitoshi/careerlog/internal/apiclient"
	"github.com/hitoshi/careerlog/internal/model"
)

// AuthService はGoogle OAuthによるログインとプロフィール取得を扱う。
type AuthService struct {
	*base
	session SessionWriter
}

// LoginURL はGoogleの認可画面のURLを取得する。
func (s *AuthService) LoginURL(ctx context.Context) (string, error) {
	var out model.LoginURL
	if err := s.api.Get(ctx, "/auth/google/login", nil, &out); err != nil {
		return "", model.NewLoginFailedError(apiclient.Detail(err), err)
	}
	return out.AuthorizationURL, nil
}

// ExchangeCode は認可コードをアクセストークンに交換し、セッションを確立する。
// 前のユーザーのデータが残らないよう、キャッシュはすべて破棄する。
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*model.User, error) {
	if code == "" {
		return nil, model.NewLoginFailedError("No authorization code received", nil)
	}

	var out model.AuthToken
	if err := s.api.Post(ctx, "/auth/google/callback", model.CallbackRequest{Code: code}, &out); err != nil {
		return nil, model.NewLoginFailedError(apiclient.Detail(err), err)
	}
	if out.AccessToken == "" || out.User == nil {
		return nil, model.NewLoginFailedError("", nil)
	}

	s.cache.Clear()
	if err := s.session.SetAuth(ctx, out.AccessToken, out.User); err != nil {
		return nil, model.NewLoginFailedError("", err)
	}
	return out.User, nil
}

// Me はログイン中のユーザー情報を再取得し、セッションに反映する。
// 失敗した場合もキャッシュ済みのプロフィールは保持される（401の場合はHTTPクライアントがセッションを破棄する）。
func (s *AuthService) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := s.api.Get(ctx, "/auth/me", nil, &out); err != nil {
		return nil, model.NewFetchFailedError("ユーザー情報", err)
	}
	if err := s.session.SetUser(ctx, &out); err != nil {
		s.logger.Warn("ユーザー情報の保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	return &out, nil
}

// Logout はセッションとキャッシュを破棄する。何度呼んでも安全。
func (s *AuthService) Logout(ctx context.Context) error {
	s.cache.Clear()
	return s.session.Logout(ctx)
}
