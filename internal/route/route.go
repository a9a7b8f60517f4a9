// Package route はログイン状態に応じた画面遷移（ルートガード）を提供する。
package route

import (
	"sync"

	"github.com/hitoshi/careerlog/internal/session"
)

// 画面のパス
const (
	Landing        = "/landing"
	Login          = "/login"
	AuthCallback   = "/auth/callback"
	Dashboard      = "/"
	Problems       = "/problems"
	NewProblem     = "/problems/new"
	Experiences    = "/experiences"
	Certifications = "/certifications"
	Learnings      = "/learnings"
	InterviewBank  = "/interview-bank"
)

// Access は画面のアクセス区分。
type Access int

const (
	// Public は誰でも表示できる。
	Public Access = iota
	// GuestOnly は未ログイン時のみ表示する。ログイン済みならダッシュボードへ移動する。
	GuestOnly
	// Protected はログインが必要。未ログインならランディングへ移動する。
	Protected
)

var routes = map[string]Access{
	Landing:        GuestOnly,
	Login:          GuestOnly,
	AuthCallback:   Public,
	Dashboard:      Protected,
	Problems:       Protected,
	NewProblem:     Protected,
	Experiences:    Protected,
	Certifications: Protected,
	Learnings:      Protected,
	InterviewBank:  Protected,
}

// Lookup はパスのアクセス区分を返す。未定義のパスはfalse。
func Lookup(path string) (Access, bool) {
	a, ok := routes[path]
	return a, ok
}

// IsProtected はパスがログイン必須かどうかを返す。
func IsProtected(path string) bool {
	return routes[path] == Protected
}

// Resolve はセッションに応じて実際に表示するパスを返す。
// 未定義のパスはそのまま返す。
func Resolve(path string, s session.Session) string {
	access, ok := routes[path]
	if !ok {
		return path
	}
	authenticated := session.IsAuthenticated(s)
	switch {
	case access == Protected && !authenticated:
		return Landing
	case access == GuestOnly && authenticated:
		return Dashboard
	}
	return path
}

// SessionSource はセッションの取得と変更通知を提供する。*session.Storeがこのインターフェースを満たす。
type SessionSource interface {
	Get() session.Session
	Subscribe(fn func(session.Session)) (unsubscribe func())
}

// Guard は現在の画面をセッションの変更ごとに再評価し、必要なら遷移させる。
type Guard struct {
	source   SessionSource
	navigate func(to string)

	mu          sync.Mutex
	current     string
	unsubscribe func()
}

// NewGuard はGuardを生成する。遷移が必要になるとnavigateが呼ばれる。
func NewGuard(source SessionSource, navigate func(to string)) *Guard {
	g := &Guard{source: source, navigate: navigate}
	g.unsubscribe = source.Subscribe(g.evaluate)
	return g
}

// Visit はpathへの遷移を要求し、実際に表示するパスを返す。
func (g *Guard) Visit(path string) string {
	resolved := Resolve(path, g.source.Get())
	g.mu.Lock()
	g.current = resolved
	g.mu.Unlock()
	return resolved
}

// Current は現在表示しているパスを返す。
func (g *Guard) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Close は購読を解除する。
func (g *Guard) Close() {
	g.unsubscribe()
}

func (g *Guard) evaluate(s session.Session) {
	g.mu.Lock()
	if g.current == "" {
		g.mu.Unlock()
		return
	}
	resolved := Resolve(g.current, s)
	if resolved == g.current {
		g.mu.Unlock()
		return
	}
	g.current = resolved
	g.mu.Unlock()

	g.navigate(resolved)
}
