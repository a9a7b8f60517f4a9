// Package storage はクライアント状態の永続化（キー・バリュー）を提供する。
// トークン・ユーザー情報・テーマをプロセス再起動後も保持するために使う。
package storage

import "context"

// 永続化キー
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyTheme = "theme"
)

// Store はキー・バリュー形式の永続化インターフェース。
// 値が存在しない場合、Getはfound=falseとnilエラーを返す。
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete は指定キーを削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error
}
