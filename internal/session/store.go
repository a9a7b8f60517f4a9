// Package session はログイン状態（トークンとユーザー）とテーマ設定を保持する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/observable"
	"github.com/hitoshi/careerlog/internal/storage"
)

// Session はクライアントのログイン状態を表す。
// Tokenが空の場合、Userの有無にかかわらず未認証として扱う。
type Session struct {
	Token string
	User  *model.User
}

// IsAuthenticated はセッションが認証済みかどうかを返す。
func IsAuthenticated(s Session) bool {
	return s.Token != ""
}

// Store はセッション状態の唯一の保持者。
// 永続化ストアに書き込んでからメモリ上の状態を公開するため、
// プロセスを再起動してもログイン状態が維持される。
type Store struct {
	kv     storage.Store
	cell   *observable.Cell[Session]
	logger *slog.Logger

	mu sync.Mutex // 永続化と公開の順序を保つ
}

// NewStore は永続化ストアからトークンとユーザーを読み込んでStoreを生成する。
// ユーザー情報が壊れている場合は未取得として扱う。
func NewStore(ctx context.Context, kv storage.Store, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token, _, err := kv.Get(ctx, storage.KeyToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var user *model.User
	raw, found, err := kv.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if found && raw != "" {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			logger.Warn("保存済みユーザー情報の読み込みに失敗しました",
				slog.String("error", err.Error()),
			)
		} else {
			user = &u
		}
	}

	return &Store{
		kv:     kv,
		cell:   observable.NewCell(Session{Token: token, User: user}),
		logger: logger,
	}, nil
}

// Get は現在のセッションのスナップショットを返す。
func (s *Store) Get() Session {
	return s.cell.Get()
}

// Token は現在のトークンを返す。未ログインの場合は空文字列。
func (s *Store) Token() string {
	return s.cell.Get().Token
}

// IsAuthenticated は現在認証済みかどうかを返す。
func (s *Store) IsAuthenticated() bool {
	return IsAuthenticated(s.cell.Get())
}

// SetAuth はトークンとユーザーを保存し、両方を同時に公開する。
// 購読者がトークンだけ設定された状態を観測することはない。
func (s *Store) SetAuth(ctx context.Context, token string, user *model.User) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	if user == nil {
		return errors.New("session: nil user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	// トークンは最後に書き込む。失敗した場合は永続化ストアをメモリ上のセッションに戻す
	if err := s.kv.Set(ctx, storage.KeyUser, string(encoded)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyToken, token); err != nil {
		s.rollbackLocked(ctx)
		return fmt.Errorf("failed to persist token: %w", err)
	}

	u := *user
	s.cell.Set(Session{Token: token, User: &u})

	s.logger.Info("ログインしました",
		slog.String("user_id", user.ID),
	)
	return nil
}

// rollbackLocked は書き込み途中で失敗したログイン情報を永続化ストアから取り消し、
// メモリ上のセッションと一致させる。s.muを保持して呼ぶこと。
func (s *Store) rollbackLocked(ctx context.Context) {
	cur := s.cell.Get()
	var err error
	if cur.Token == "" {
		err = s.kv.Delete(ctx, storage.KeyToken, storage.KeyUser)
	} else if cur.User != nil {
		var encoded []byte
		if encoded, err = json.Marshal(cur.User); err == nil {
			err = s.kv.Set(ctx, storage.KeyUser, string(encoded))
		}
	}
	if err != nil {
		s.logger.Error("書き込み途中のセッション情報の取り消しに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// SetUser はキャッシュ済みのユーザー情報のみを更新する。トークンは変更しない。
func (s *Store) SetUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("session: nil user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyUser, string(encoded)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	u := *user
	s.cell.Update(func(cur Session) (Session, bool) {
		cur.User = &u
		return cur, true
	})
	return nil
}

// Logout は永続化ストアとメモリ上の状態を消去する。
// 何度呼んでも安全で、既にログアウト済みの場合は購読者に通知しない。
// 永続化ストアの削除に失敗した場合もメモリ上の状態は消去し、エラーを返す。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persistErr error
	if err := s.kv.Delete(ctx, storage.KeyToken, storage.KeyUser); err != nil {
		persistErr = fmt.Errorf("failed to clear persisted session: %w", err)
		s.logger.Error("セッション情報の削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	changed := s.cell.Update(func(cur Session) (Session, bool) {
		if cur.Token == "" && cur.User == nil {
			return cur, false
		}
		return Session{}, true
	})
	if changed {
		s.logger.Info("ログアウトしました")
	}
	return persistErr
}

// Subscribe はセッション変更の通知を受け取るコールバックを登録する。
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	return s.cell.Subscribe(fn)
}
