// Package query はリソース取得結果のキャッシュと無効化を提供する。
// キャッシュキーは文字列の順序付きタプルで、先頭要素がリソース名となる。
package query

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/careerlog/internal/metrics"
)

// Key はキャッシュキー。例: {"problems", "list", "page=1&size=10"}
type Key []string

// String はマップキーとして使う一意な文字列表現を返す。
func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix はkがprefixで始まるかどうかを返す。
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Resource はキーの先頭要素（リソース名）を返す。
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// ParamsKey はクエリパラメータを正規化した文字列にする。
// 空の値は取り除き、キー順にソートされるため同じ条件は同じ文字列になる。
func ParamsKey(params url.Values) string {
	cleaned := make(url.Values, len(params))
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				cleaned.Add(k, v)
			}
		}
	}
	return cleaned.Encode()
}

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	stale     bool
}

type subscription struct {
	prefix Key
	fn     func(invalidated Key)
}

// Cache はキー単位で取得結果を保持する。
// 同一キーの同時取得はsingleflightで1回にまとめる。
type Cache struct {
	staleTime time.Duration
	metrics   metrics.MetricsCollector
	now       func() time.Time

	mu         sync.Mutex
	entries    map[string]*entry
	epochs     map[string]uint64 // リソース別の無効化世代
	generation uint64            // Clearの世代
	subs       map[uint64]subscription
	nextSubID  uint64

	group singleflight.Group
}

// NewCache はCacheを生成する。staleTimeを過ぎたエントリは再取得される。
func NewCache(staleTime time.Duration, m metrics.MetricsCollector) *Cache {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Cache{
		staleTime: staleTime,
		metrics:   m,
		now:       time.Now,
		entries:   make(map[string]*entry),
		epochs:    make(map[string]uint64),
		subs:      make(map[uint64]subscription),
	}
}

// epochLocked は取得開始時点の世代を表す文字列を返す。c.muを保持して呼ぶこと。
func (c *Cache) epochLocked(resource string) string {
	return fmt.Sprintf("%d.%d", c.generation, c.epochs[resource])
}

// Fetch は新鮮なキャッシュがあればそれを返し、なければfnで取得して保存する。
// 取得中に同じリソースが無効化された場合、結果は呼び出し元に返すが
// キャッシュには古いものとして保存する。
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	k := key.String()
	resource := key.Resource()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && !e.stale && c.now().Sub(e.fetchedAt) < c.staleTime {
		if v, ok := e.value.(T); ok {
			c.mu.Unlock()
			c.metrics.RecordCacheHit(resource)
			return v, nil
		}
	}
	epoch := c.epochLocked(resource)
	c.mu.Unlock()
	c.metrics.RecordCacheMiss(resource)

	// 取得は合流した呼び出し元で共有するため、最初の呼び出し元のキャンセルでは中断しない。
	// 各呼び出し元は自身のctxが終了した時点で待つのをやめる。
	ch := c.group.DoChan(k+"@"+epoch, func() (any, error) {
		val, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, epoch, val)
		return val, nil
	})

	var zero T
	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache) store(key Key, epoch string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = &entry{
		key:       append(Key(nil), key...),
		value:     value,
		fetchedAt: c.now(),
		stale:     c.epochLocked(key.Resource()) != epoch,
	}
}

// Peek はキャッシュ済みの値を鮮度にかかわらず返す。
func Peek[T any](c *Cache, key Key) (value T, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key.String()]
	if !found {
		return value, false, false
	}
	v, isT := e.value.(T)
	if !isT {
		return value, false, false
	}
	return v, e.stale || c.now().Sub(e.fetchedAt) >= c.staleTime, true
}

// Invalidate はprefixに一致するすべてのエントリを古いものとしてマークし、
// 関連する購読者に通知する。
func (c *Cache) Invalidate(prefix Key) {
	if len(prefix) == 0 {
		return
	}

	c.mu.Lock()
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
		}
	}
	c.epochs[prefix.Resource()]++
	targets := c.matchingSubsLocked(prefix)
	c.mu.Unlock()

	for _, fn := range targets {
		fn(prefix)
	}
}

// Clear はすべてのエントリを破棄する。ログアウト時に他ユーザーのデータを残さないために使う。
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.generation++
	c.mu.Unlock()
}

// Subscribe はprefixと重なるキーが無効化されたときに呼ばれるコールバックを登録する。
// 無効化されたprefixがこの購読のprefixの上位・下位いずれであっても通知する。
func (c *Cache) Subscribe(prefix Key, fn func(invalidated Key)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = subscription{prefix: prefix, fn: fn}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) matchingSubsLocked(invalidated Key) []func(Key) {
	var out []func(Key)
	for _, s := range c.subs {
		if s.prefix.HasPrefix(invalidated) || invalidated.HasPrefix(s.prefix) {
			out = append(out, s.fn)
		}
	}
	return out
}
