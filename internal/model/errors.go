// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// 画面に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, mutation, fetch, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // 入力検証エラーのフィールド別メッセージ
	Err      error             // 原因となったエラー（ログ用）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryMutation   = "mutation"
	CategoryFetch      = "fetch"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeSessionExpired   = "SESSION_EXPIRED"
	ErrCodeLoginCancelled   = "LOGIN_CANCELLED"
	ErrCodeLoginFailed      = "LOGIN_FAILED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeMutationFailed   = "MUTATION_FAILED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUploadRejected   = "UPLOAD_REJECTED"
)

// NewUnauthenticatedError は未ログイン状態で保護された操作を行った場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインしていません。",
		Category: CategoryAuth,
		Action:   "careerlog login を実行してログインしてください。",
	}
}

// NewSessionExpiredError はセッションが失効した場合のエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: CategoryAuth,
		Action:   "careerlog login を実行して再度ログインしてください。",
	}
}

// NewLoginCancelledError は認証がキャンセルまたは拒否された場合のエラーを生成する。
func NewLoginCancelledError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeLoginCancelled,
		Message:  fmt.Sprintf("認証がキャンセルされたか失敗しました: %s", reason),
		Category: CategoryAuth,
		Action:   "もう一度ログインをお試しください。",
	}
}

// NewLoginFailedError は認可コードの交換に失敗した場合のエラーを生成する。
func NewLoginFailedError(detail string, err error) *APIError {
	if detail == "" {
		detail = "Authentication failed. Please try again."
	}
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  detail,
		Category: CategoryAuth,
		Action:   "もう一度ログインをお試しください。",
		Err:      err,
	}
}

// NewValidationError は送信前の入力検証エラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: CategoryValidation,
		Action:   "指摘された項目を修正してから再度送信してください。",
		Fields:   fields,
	}
}

// NewMutationFailedError はサーバーが作成・更新・削除を拒否した場合のエラーを生成する。
// 元のデータは変更されていない前提で扱う。
func NewMutationFailedError(resource, op string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeMutationFailed,
		Message:  fmt.Sprintf("%sの%sに失敗しました。", resource, op),
		Category: CategoryMutation,
		Action:   "データは変更されていません。内容を確認して再度お試しください。",
		Err:      err,
	}
}

// NewFetchFailedError は一覧・詳細の取得に失敗した場合のエラーを生成する。
func NewFetchFailedError(resource string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("%sの取得に失敗しました。", resource),
		Category: CategoryFetch,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewNotFoundError は指定したリソースが存在しない場合のエラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", resource, id),
		Category: CategoryFetch,
		Action:   "IDを確認してください。",
	}
}

// NewUploadRejectedError はアップロード前のファイル検査で拒否した場合のエラーを生成する。
func NewUploadRejectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadRejected,
		Message:  fmt.Sprintf("ファイルをアップロードできません: %s", reason),
		Category: CategoryValidation,
		Action:   "JPEG/PNG/GIF/WebP形式で、上限サイズ以下の画像を指定してください。",
	}
}
