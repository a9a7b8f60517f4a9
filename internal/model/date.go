package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// dateLayout はAPIが返す日付の形式。
const dateLayout = "2006-01-02"

// timestampLayouts はcreated_at等の日時として受け付ける形式。
// バックエンドはタイムゾーンなしのISO 8601を返すことがある。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// Date は時刻を持たない暦日を表す。JSONでは "YYYY-MM-DD" として扱う。
type Date struct {
	time.Time
}

// NewDate は年月日からDateを生成する。
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate は "YYYY-MM-DD" 形式の文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String は "YYYY-MM-DD" 形式を返す。ゼロ値の場合は空文字列。
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON はjson.Marshalerを実装する。ゼロ値はnullになる。
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timestamp はサーバーが付与する日時を表す。
type Timestamp struct {
	time.Time
}

// MarshalJSON はjson.Marshalerを実装する。
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
// タイムゾーンを持たない値はUTCとして解釈する。
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{Time: parsed}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
