package richtext

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// blockElements は前後で改行を挟む要素。
var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
}

// PlainText はHTMLからテキストのみを取り出す。一覧のプレビューと検索に使う。
// ブロック要素の境界は空白1つとして扱い、連続する空白はまとめる。
func PlainText(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOFまたは不正な入力。読み取れた分だけ返す
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

// HasContent は表示されるテキストを含むかどうかを返す。
// 空のエディタは "<p></p>" を出力するため、これは空として扱う。
func HasContent(s string) bool {
	return PlainText(s) != ""
}

// Excerpt はPlainTextを最大maxRunes文字に切り詰める。切り詰めた場合は末尾に"…"を付ける。
func Excerpt(s string, maxRunes int) string {
	text := PlainText(s)
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

// FromPlainText はCLIなどで入力されたプレーンテキストをエディタと同じ形式のHTMLに変換する。
// 空行で段落を分け、段落内の改行は<br>にする。HTMLを含む入力はそのまま返す。
func FromPlainText(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" || !IsPlainText(s) {
		return s
	}
	var b strings.Builder
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
