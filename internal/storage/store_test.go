package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// exerciseStore はStore実装に共通する振る舞いを検証する。
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, KeyToken); err != nil || found {
		t.Fatalf("未設定キーの Get = (found=%v, err=%v), want (false, nil)", found, err)
	}

	if err := s.Set(ctx, KeyToken, "tok-1"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	if err := s.Set(ctx, KeyUser, `{"id":"u-1"}`); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	v, found, err := s.Get(ctx, KeyToken)
	if err != nil || !found || v != "tok-1" {
		t.Errorf("Get(token) = (%q, %v, %v), want (tok-1, true, nil)", v, found, err)
	}

	if err := s.Set(ctx, KeyToken, "tok-2"); err != nil {
		t.Fatalf("上書きの Set がエラーを返した: %v", err)
	}
	if v, _, _ := s.Get(ctx, KeyToken); v != "tok-2" {
		t.Errorf("上書き後の Get(token) = %q, want tok-2", v)
	}

	if err := s.Delete(ctx, KeyToken, KeyUser, "missing"); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if _, found, _ := s.Get(ctx, KeyToken); found {
		t.Error("Delete 後も token が残っている")
	}
	if _, found, _ := s.Get(ctx, KeyUser); found {
		t.Error("Delete 後も user が残っている")
	}

	// 2回目の削除もエラーにならない
	if err := s.Delete(ctx, KeyToken); err != nil {
		t.Errorf("2回目の Delete がエラーを返した: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	if err := first.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	// 再起動相当: 新しいインスタンスで読み出す
	second, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	v, found, err := second.Get(ctx, KeyTheme)
	if err != nil || !found || v != "dark" {
		t.Errorf("Get(theme) = (%q, %v, %v), want (dark, true, nil)", v, found, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat がエラーを返した: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("状態ファイルのパーミッション = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFileReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile がエラーを返した: %v", err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	if _, _, err := s.Get(context.Background(), KeyToken); err == nil {
		t.Error("壊れた状態ファイルでエラーが返されなかった")
	}
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL が未設定のためスキップ")
	}
	s, err := NewRedisStore(context.Background(), redisURL, "careerlog-test:")
	if err != nil {
		t.Fatalf("NewRedisStore がエラーを返した: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}
