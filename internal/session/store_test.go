package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/storage"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// failingStore は指定したキーへの書き込みや削除が失敗するStore。
type failingStore struct {
	*storage.MemoryStore
	setErr    map[string]error
	deleteErr error
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if err := s.setErr[key]; err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, keys ...string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, keys...)
}

func testUser() *model.User {
	return &model.User{ID: "u-1", Email: "taro@example.com", FullName: "Taro", IsActive: true}
}

func TestStore_SetAuth_PublishesTokenAndUserTogether(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s, err := NewStore(ctx, storage.NewMemoryStore(), newTestLogger(&buf))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	var observed []Session
	s.Subscribe(func(sess Session) { observed = append(observed, sess) })

	if err := s.SetAuth(ctx, "tok-1", testUser()); err != nil {
		t.Fatalf("SetAuth() error = %v", err)
	}

	if len(observed) != 1 {
		t.Fatalf("通知回数 = %d, want 1", len(observed))
	}
	if observed[0].Token != "tok-1" || observed[0].User == nil || observed[0].User.ID != "u-1" {
		t.Errorf("通知されたセッション = %+v, want token=tok-1 user=u-1", observed[0])
	}
	if !s.IsAuthenticated() {
		t.Error("SetAuth後は認証済みであるべきです")
	}
}

func TestStore_SetAuth_RejectsEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, storage.NewMemoryStore(), nil)

	if err := s.SetAuth(ctx, "", testUser()); err == nil {
		t.Error("空トークンでエラーが返されるべきです")
	}
	if err := s.SetAuth(ctx, "tok", nil); err == nil {
		t.Error("nilユーザーでエラーが返されるべきです")
	}
	if s.IsAuthenticated() {
		t.Error("失敗したSetAuthで状態が変わるべきではありません")
	}
}

func TestStore_RestoresFromStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	first, _ := NewStore(ctx, kv, nil)
	if err := first.SetAuth(ctx, "tok-1", testUser()); err != nil {
		t.Fatalf("SetAuth() error = %v", err)
	}

	second, err := NewStore(ctx, kv, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	got := second.Get()
	if got.Token != "tok-1" {
		t.Errorf("Token = %q, want %q", got.Token, "tok-1")
	}
	if got.User == nil || got.User.Email != "taro@example.com" {
		t.Errorf("User = %+v, want email taro@example.com", got.User)
	}
}

func TestStore_CorruptUserTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	_ = kv.Set(ctx, storage.KeyToken, "tok-1")
	_ = kv.Set(ctx, storage.KeyUser, "{not json")

	var buf bytes.Buffer
	s, err := NewStore(ctx, kv, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Get().User != nil {
		t.Error("壊れたユーザー情報はnilとして扱われるべきです")
	}
	if s.Token() != "tok-1" {
		t.Errorf("Token = %q, want %q", s.Token(), "tok-1")
	}
	if !bytes.Contains(buf.Bytes(), []byte("WARN")) {
		t.Errorf("警告ログが出力されていません: %s", buf.String())
	}
}

func TestStore_Logout_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s, _ := NewStore(ctx, kv, nil)
	_ = s.SetAuth(ctx, "tok-1", testUser())

	notifications := 0
	s.Subscribe(func(Session) { notifications++ })

	for i := 0; i < 3; i++ {
		if err := s.Logout(ctx); err != nil {
			t.Fatalf("Logout() #%d error = %v", i+1, err)
		}
	}

	if notifications != 1 {
		t.Errorf("通知回数 = %d, want 1", notifications)
	}
	if s.IsAuthenticated() {
		t.Error("ログアウト後に認証済みのままです")
	}
	if _, found, _ := kv.Get(ctx, storage.KeyToken); found {
		t.Error("永続化されたトークンが残っています")
	}
	if _, found, _ := kv.Get(ctx, storage.KeyUser); found {
		t.Error("永続化されたユーザーが残っています")
	}
}

func TestStore_Logout_ClearsMemoryEvenIfStorageFails(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{MemoryStore: storage.NewMemoryStore(), deleteErr: errors.New("disk full")}
	var buf bytes.Buffer
	s, _ := NewStore(ctx, kv, newTestLogger(&buf))
	_ = s.SetAuth(ctx, "tok-1", testUser())

	if err := s.Logout(ctx); err == nil {
		t.Error("永続化の削除失敗はエラーとして返されるべきです")
	}
	if s.IsAuthenticated() {
		t.Error("削除失敗時もメモリ上のセッションは消去されるべきです")
	}
}

func TestStore_SetAuth_FailedWriteLeavesNoToken(t *testing.T) {
	tests := []struct {
		name    string
		failKey string
	}{
		{"user write fails", storage.KeyUser},
		{"token write fails", storage.KeyToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := &failingStore{
				MemoryStore: storage.NewMemoryStore(),
				setErr:      map[string]error{tt.failKey: errors.New("disk full")},
			}
			var buf bytes.Buffer
			s, _ := NewStore(ctx, kv, newTestLogger(&buf))

			if err := s.SetAuth(ctx, "tok-1", testUser()); err == nil {
				t.Fatal("書き込み失敗時にエラーが返されませんでした")
			}
			if s.IsAuthenticated() {
				t.Error("失敗したログインでメモリ上が認証済みになっています")
			}
			if _, found, _ := kv.Get(ctx, storage.KeyToken); found {
				t.Error("失敗したログインのトークンが永続化されています")
			}
			if _, found, _ := kv.Get(ctx, storage.KeyUser); found {
				t.Error("失敗したログインのユーザーが永続化されています")
			}

			reloaded, err := NewStore(ctx, kv, newTestLogger(&buf))
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			if reloaded.IsAuthenticated() {
				t.Error("再起動後に認証済みとして復元されました")
			}
		})
	}
}

func TestStore_SetAuth_FailedReloginKeepsPreviousUser(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{MemoryStore: storage.NewMemoryStore()}
	var buf bytes.Buffer
	s, _ := NewStore(ctx, kv, newTestLogger(&buf))
	if err := s.SetAuth(ctx, "tok-1", testUser()); err != nil {
		t.Fatalf("SetAuth() error = %v", err)
	}

	kv.setErr = map[string]error{storage.KeyToken: errors.New("disk full")}
	other := &model.User{ID: "u-2", Email: "hanako@example.com", FullName: "Hanako", IsActive: true}
	if err := s.SetAuth(ctx, "tok-2", other); err == nil {
		t.Fatal("書き込み失敗時にエラーが返されませんでした")
	}

	reloaded, _ := NewStore(ctx, kv, newTestLogger(&buf))
	got := reloaded.Get()
	if got.Token != "tok-1" || got.User == nil || got.User.ID != "u-1" {
		t.Errorf("復元されたセッション = %+v, want token=tok-1 user=u-1", got)
	}
}

func TestStore_SetUser_KeepsToken(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, storage.NewMemoryStore(), nil)
	_ = s.SetAuth(ctx, "tok-1", testUser())

	updated := testUser()
	updated.FullName = "Taro Yamada"
	if err := s.SetUser(ctx, updated); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}

	got := s.Get()
	if got.Token != "tok-1" {
		t.Errorf("Token = %q, want %q", got.Token, "tok-1")
	}
	if got.User.FullName != "Taro Yamada" {
		t.Errorf("FullName = %q, want %q", got.User.FullName, "Taro Yamada")
	}

	// 呼び出し元が渡した値を後から変更してもセッションには影響しない
	updated.FullName = "changed"
	if s.Get().User.FullName != "Taro Yamada" {
		t.Error("セッションが呼び出し元のポインタを共有しています")
	}
}

func TestThemeStore_TogglePersists(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	ts, err := NewThemeStore(ctx, kv)
	if err != nil {
		t.Fatalf("NewThemeStore() error = %v", err)
	}
	if ts.Get() != ThemeLight {
		t.Errorf("初期テーマ = %q, want %q", ts.Get(), ThemeLight)
	}

	got, err := ts.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got != ThemeDark {
		t.Errorf("Toggle() = %q, want %q", got, ThemeDark)
	}

	reloaded, _ := NewThemeStore(ctx, kv)
	if reloaded.Get() != ThemeDark {
		t.Errorf("再読み込み後のテーマ = %q, want %q", reloaded.Get(), ThemeDark)
	}

	if err := ts.Set(ctx, Theme("sepia")); err == nil {
		t.Error("未知のテーマでエラーが返されるべきです")
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"期限内", signedToken(t, now.Add(time.Hour)), false},
		{"期限切れ", signedToken(t, now.Add(-time.Minute)), true},
		{"JWTではない", "opaque-token", false},
		{"空", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.token, now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
