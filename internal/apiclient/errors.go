package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxDetailBytes はdetailを持たないエラーレスポンスから読み取る本文の上限。
const maxDetailBytes = 512

// HTTPError はAPIが2xx以外のステータスを返した場合のエラー。
// Detailはレスポンスのdetailフィールド（文字列、またはそれ以外のJSONをそのまま）。
type HTTPError struct {
	Status int
	Method string
	Path   string
	Detail string
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
}

// StatusCode はerrがHTTPErrorの場合にそのステータスコードを返す。それ以外は0。
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// IsUnauthorized はerrが401レスポンスかどうかを返す。
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound はerrが404レスポンスかどうかを返す。
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Detail はerrがHTTPErrorの場合にそのDetailを返す。
func Detail(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Detail
	}
	return ""
}

// parseDetail はエラーレスポンス本文からdetailを取り出す。
func parseDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		return string(envelope.Detail)
	}

	if len(body) > maxDetailBytes {
		body = body[:maxDetailBytes]
	}
	return strings.TrimSpace(string(body))
}
