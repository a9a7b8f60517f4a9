// Package resource はバックエンドの各リソースに対する取得・作成・更新・削除を提供する。
// 取得結果はクエリキャッシュに保持し、変更操作の成功後に関連するキャッシュを無効化する。
// 楽観的更新は行わず、サーバーの応答を待ってから無効化する。
package resource

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
)

// リソース名。キャッシュキーの先頭要素として使う。
const (
	ResourceProblems       = "problems"
	ResourceLearnings      = "learnings"
	ResourceInterviews     = "interview-questions"
	ResourceCertifications = "certifications"
	ResourceExperiences    = "experiences"
	ResourceDashboard      = "dashboard"
	ResourceAuth           = "auth"
)

const (
	// DefaultPageSize は一覧取得の既定ページサイズ。
	DefaultPageSize = 10
	// MaxPageSize はAPIが受け付けるページサイズの上限。
	MaxPageSize = 100
	// DefaultMaxUploadSize はアップロードできるファイルサイズの既定上限（5MiB）。
	DefaultMaxUploadSize int64 = 5 << 20
)

// API はバックエンドAPIへのリクエスト送信を表す。*apiclient.Clientがこのインターフェースを満たす。
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
	Upload(ctx context.Context, path, filename, contentType string, r io.Reader, out any) error
}

// Validator は送信前の入力検証を表す。
type Validator interface {
	Struct(s any) error
}

// SessionWriter はログイン・ログアウトで更新するセッションを表す。*session.Storeがこのインターフェースを満たす。
type SessionWriter interface {
	SetAuth(ctx context.Context, token string, user *model.User) error
	SetUser(ctx context.Context, user *model.User) error
	Logout(ctx context.Context) error
}

// Config はサービス群の設定を保持する。
type Config struct {
	DefaultPageSize int
	MaxUploadSize   int64
}

// Services は全リソースのサービスをまとめたもの。
type Services struct {
	Problems       *ProblemService
	Learnings      *LearningService
	Interviews     *InterviewService
	Certifications *CertificationService
	Experiences    *ExperienceService
	Dashboard      *DashboardService
	Auth           *AuthService
	Uploads        *UploadService
}

// New は全リソースのサービスを生成する。
func New(api API, cache *query.Cache, v Validator, sess SessionWriter, cfg Config, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}

	b := &base{api: api, cache: cache, validate: v, logger: logger, pageSize: cfg.DefaultPageSize}
	return &Services{
		Problems:       &ProblemService{base: b},
		Learnings:      &LearningService{base: b},
		Interviews:     &InterviewService{base: b},
		Certifications: &CertificationService{base: b},
		Experiences:    &ExperienceService{base: b},
		Dashboard:      &DashboardService{base: b},
		Auth:           &AuthService{base: b, session: sess},
		Uploads:        &UploadService{base: b, maxSize: cfg.MaxUploadSize},
	}
}

// base は各サービスが共有する依存。
type base struct {
	api      API
	cache    *query.Cache
	validate Validator
	logger   *slog.Logger
	pageSize int
}

// mutate は入力を検証してから変更操作を実行し、成功した場合のみキャッシュを無効化する。
// 変更操作はresourceの全キャッシュとダッシュボードに影響する。
func (b *base) mutate(ctx context.Context, resource, label, op string, input any, do func(ctx context.Context) error) error {
	if input != nil {
		if err := b.validate.Struct(input); err != nil {
			return err
		}
	}
	if err := do(ctx); err != nil {
		b.logger.Warn("変更操作に失敗しました",
			slog.String("resource", resource),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return model.NewMutationFailedError(label, op, err)
	}
	b.invalidate(resource)
	return nil
}

func (b *base) invalidate(resource string) {
	b.cache.Invalidate(query.Key{resource})
	if resource != ResourceDashboard {
		b.cache.Invalidate(query.Key{ResourceDashboard})
	}
}

// pageParams はページ番号とサイズを正規化してクエリパラメータにする。
func (b *base) pageParams(page, size int) url.Values {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = b.pageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	return params
}

// setIfNotEmpty は値が空でない場合のみパラメータを設定する。
func setIfNotEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// ListKey は一覧のキャッシュキーを返す。
func ListKey(resource string, params url.Values) query.Key {
	return query.Key{resource, "list", query.ParamsKey(params)}
}

// DetailKey は詳細のキャッシュキーを返す。
func DetailKey(resource, id string) query.Key {
	return query.Key{resource, "detail", id}
}
