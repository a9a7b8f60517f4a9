package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/careerlog/internal/apiclient"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/session"
	"github.com/hitoshi/careerlog/internal/storage"
)

func TestResolve(t *testing.T) {
	authed := session.Session{Token: "tok", User: &model.User{ID: "u-1"}}
	anon := session.Session{}
	userOnly := session.Session{User: &model.User{ID: "u-1"}}

	tests := []struct {
		name string
		path string
		sess session.Session
		want string
	}{
		{"未ログインで保護画面", Problems, anon, Landing},
		{"ユーザーのみでトークンなし", Dashboard, userOnly, Landing},
		{"ログイン済みで保護画面", Problems, authed, Problems},
		{"ログイン済みでランディング", Landing, authed, Dashboard},
		{"ログイン済みでログイン画面", Login, authed, Dashboard},
		{"未ログインでログイン画面", Login, anon, Login},
		{"コールバックは常に表示", AuthCallback, authed, AuthCallback},
		{"未定義のパス", "/unknown", anon, "/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.path, tt.sess); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsProtected(t *testing.T) {
	for _, p := range []string{Dashboard, Problems, NewProblem, Experiences, Certifications, Learnings, InterviewBank} {
		if !IsProtected(p) {
			t.Errorf("IsProtected(%q) = false, want true", p)
		}
	}
	for _, p := range []string{Landing, Login, AuthCallback, "/nope"} {
		if IsProtected(p) {
			t.Errorf("IsProtected(%q) = true, want false", p)
		}
	}
}

// 401を受けるとセッションが破棄され、保護画面からランディングへ移動する。
func TestGuard_RedirectsOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store, err := session.NewStore(ctx, kv, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.SetAuth(ctx, "expired", &model.User{ID: "u-1"}); err != nil {
		t.Fatalf("SetAuth() error = %v", err)
	}

	var navigations []string
	guard := NewGuard(store, func(to string) { navigations = append(navigations, to) })
	defer guard.Close()

	if got := guard.Visit(Problems); got != Problems {
		t.Fatalf("Visit() = %q, want %q", got, Problems)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	client := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, kv, store, nil, nil)
	if err := client.Get(ctx, "/problems", nil, &struct{}{}); !apiclient.IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401", err)
	}

	if store.IsAuthenticated() {
		t.Error("401後もセッションが残っています")
	}
	if len(navigations) != 1 || navigations[0] != Landing {
		t.Errorf("遷移 = %v, want [%s]", navigations, Landing)
	}
	if guard.Current() != Landing {
		t.Errorf("Current() = %q, want %q", guard.Current(), Landing)
	}
	if got := guard.Visit(Dashboard); got != Landing {
		t.Errorf("401後のVisit(%q) = %q, want %q", Dashboard, got, Landing)
	}
}

func TestGuard_LoginMovesToDashboard(t *testing.T) {
	ctx := context.Background()
	store, _ := session.NewStore(ctx, storage.NewMemoryStore(), nil)

	var navigations []string
	guard := NewGuard(store, func(to string) { navigations = append(navigations, to) })
	defer guard.Close()

	guard.Visit(Login)
	_ = store.SetAuth(ctx, "tok", &model.User{ID: "u-1"})

	if len(navigations) != 1 || navigations[0] != Dashboard {
		t.Errorf("遷移 = %v, want [%s]", navigations, Dashboard)
	}

	// 画面に影響しない変更では遷移しない
	_ = store.SetUser(ctx, &model.User{ID: "u-1", FullName: "Taro"})
	if len(navigations) != 1 {
		t.Errorf("遷移回数 = %d, want 1", len(navigations))
	}
}
