package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt はアクセストークンのexpクレームを署名検証なしで読み取る。
// クライアントは署名鍵を持たないため、期限切れの事前検知にのみ使う。
// JWTでない、またはexpを持たない場合はfalseを返す。
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired はトークンがnow時点で期限切れかどうかを返す。
// 期限を判定できないトークンは期限切れとみなさない（サーバーの401に委ねる）。
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
