package richtext

import "strings"

// ParseTags はカンマ区切りのタグ入力を分解する。
// 各タグの前後の空白を除き、空のタグは捨てる。
func ParseTags(input string) []string {
	parts := strings.Split(input, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FormatTags はタグをカンマ区切りの入力形式に戻す。
func FormatTags(tags []string) string {
	return strings.Join(tags, ", ")
}
