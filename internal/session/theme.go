package session

import (
	"context"
	"fmt"

	"github.com/hitoshi/careerlog/internal/observable"
	"github.com/hitoshi/careerlog/internal/storage"
)

// Theme は表示テーマを表す。
type Theme string

const (
	// ThemeLight はライトテーマ（既定）。
	ThemeLight Theme = "light"
	// ThemeDark はダークテーマ。
	ThemeDark Theme = "dark"
)

// ThemeStore は永続化されたテーマ設定を保持する。セッションとは独立して所有される。
type ThemeStore struct {
	kv   storage.Store
	cell *observable.Cell[Theme]
}

// NewThemeStore は永続化ストアからテーマを読み込む。未設定・不明な値はライトテーマとする。
func NewThemeStore(ctx context.Context, kv storage.Store) (*ThemeStore, error) {
	v, _, err := kv.Get(ctx, storage.KeyTheme)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}
	theme := ThemeLight
	if Theme(v) == ThemeDark {
		theme = ThemeDark
	}
	return &ThemeStore{kv: kv, cell: observable.NewCell(theme)}, nil
}

// Get は現在のテーマを返す。
func (t *ThemeStore) Get() Theme {
	return t.cell.Get()
}

// Set はテーマを保存して公開する。
func (t *ThemeStore) Set(ctx context.Context, theme Theme) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	if err := t.kv.Set(ctx, storage.KeyTheme, string(theme)); err != nil {
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	t.cell.Update(func(cur Theme) (Theme, bool) {
		return theme, cur != theme
	})
	return nil
}

// Toggle はライトとダークを切り替え、切り替え後のテーマを返す。
func (t *ThemeStore) Toggle(ctx context.Context) (Theme, error) {
	next := ThemeDark
	if t.Get() == ThemeDark {
		next = ThemeLight
	}
	if err := t.Set(ctx, next); err != nil {
		return t.Get(), err
	}
	return next, nil
}

// Subscribe はテーマ変更の通知を受け取るコールバックを登録する。
func (t *ThemeStore) Subscribe(fn func(Theme)) (unsubscribe func()) {
	return t.cell.Subscribe(fn)
}
