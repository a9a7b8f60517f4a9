// Package model はドメインモデルを定義する。
package model

// User はログイン中のユーザープロフィールを表す。
// クライアントからは不変として扱い、/auth/me の再取得でのみ更新する。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt Timestamp `json:"created_at"`
}

// LoginURL は GET /auth/google/login のレスポンス。
type LoginURL struct {
	AuthorizationURL string `json:"authorization_url"`
}

// CallbackRequest は POST /auth/google/callback のリクエストボディ。
type CallbackRequest struct {
	Code string `json:"code"`
}

// AuthToken は認可コード交換のレスポンス。
// userはバックエンドの実装上省略され得るため、ポインタで保持する。
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}
