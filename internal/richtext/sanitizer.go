// Package richtext はリッチテキスト（エディタが出力するHTML）の扱いを提供する。
//
// Sanitizer は保存済みHTMLを表示用に無害化する。
// bluemondayの許可リストポリシーで、エディタが生成し得るタグと属性のみを通過させる。
package richtext

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLの無害化を行う。
type Sanitizer interface {
	// Sanitize は表示用に安全なHTMLを返す。
	// タグを含まないプレーンテキストはエスケープし、改行を<br>に変換する。
	Sanitize(rawHTML string) string
}

type sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h1-h6, ul, ol, li, blockquote, pre, code, strong, em, s, hr, a, img
//   - script, iframe, styleおよびon*イベント属性は除去
//   - a, imgのURL: httpsまたは相対URL（/api/v1/uploads配下の画像）のみ許可
func NewSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"strong", "em", "s", "hr",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	// アップロード画像は相対パスで保存される
	p.AllowRelativeURLs(true)
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool {
		return true
	})

	return &sanitizer{policy: p}
}

var tagPattern = regexp.MustCompile(`(?i)<[a-z][\s\S]*>`)

// IsPlainText はHTMLタグを含まない文字列かどうかを返す。
// エディタ導入前に保存されたデータはプレーンテキストのまま残っている。
func IsPlainText(s string) bool {
	return !tagPattern.MatchString(s)
}

// Sanitize はHTMLを無害化する。
func (s *sanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	if IsPlainText(rawHTML) {
		return strings.ReplaceAll(html.EscapeString(rawHTML), "\n", "<br>")
	}
	return s.policy.Sanitize(rawHTML)
}
